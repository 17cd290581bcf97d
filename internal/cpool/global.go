package cpool

import (
	perrors "github.com/tangzhangming/pack200/internal/errors"
)

// GlobalTable 整个传输段共享的规范常量表
//
// 各域内按到达顺序登记，Seal 后按域的枚举顺序拼接并分配全局索引。
// 全局索引只记录在表中，不写回登记的实例；装配时各 Pool 通过
// WithGlobalTable 按键查询。Seal 之后表只读，可被多个装配任务并发读取。
type GlobalTable struct {
	byDomain [NumDomains][]Constant
	lookup   map[string]Constant
	index    map[string]int
	sealed   bool
}

// NewGlobalTable 创建空的全局表
func NewGlobalTable() *GlobalTable {
	return &GlobalTable{lookup: make(map[string]Constant)}
}

// Intern 登记常量及其嵌套常量，返回表中的规范实例
// 嵌套常量先于自身登记
func (g *GlobalTable) Intern(c Constant) Constant {
	if g.sealed {
		panic(perrors.Invariant(perrors.P0100, "Intern on sealed global table").WithEntry(c.String()))
	}
	if existing, ok := g.lookup[c.Key()]; ok {
		return existing
	}
	for _, nested := range c.NestedEntries() {
		if nc, ok := nested.(Constant); ok {
			g.Intern(nc)
		}
	}
	g.lookup[c.Key()] = c
	g.byDomain[c.Domain()] = append(g.byDomain[c.Domain()], c)
	return c
}

// InternAll 从根条目出发遍历全部嵌套条目，按发现顺序登记其中的常量
// 非常量条目只用于继续遍历，按身份去重
func (g *GlobalTable) InternAll(roots ...Entry) {
	seen := make(map[Entry]struct{})
	queue := append([]Entry(nil), roots...)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if c, ok := e.(Constant); ok {
			if _, dup := g.lookup[c.Key()]; dup {
				continue
			}
			g.Intern(c)
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		queue = append(queue, e.NestedEntries()...)
	}
}

// Seal 分配全局索引，返回条目总数
func (g *GlobalTable) Seal() int {
	if g.sealed {
		return len(g.lookup)
	}
	g.index = make(map[string]int, len(g.lookup))
	next := 0
	for d := Domain(0); d < NumDomains; d++ {
		for _, c := range g.byDomain[d] {
			g.index[c.Key()] = next
			next++
		}
	}
	g.sealed = true
	return next
}

// Lookup 按键查找已登记的常量
func (g *GlobalTable) Lookup(key string) (Constant, bool) {
	c, ok := g.lookup[key]
	return c, ok
}

// IndexOf 返回键对应的全局索引，未登记或未 Seal 时返回 NoGlobalIndex
func (g *GlobalTable) IndexOf(key string) int {
	if i, ok := g.index[key]; ok {
		return i
	}
	return NoGlobalIndex
}

// Len 已登记的常量数
func (g *GlobalTable) Len() int {
	return len(g.lookup)
}

// Domain 返回某个域内按全局索引排列的常量
func (g *GlobalTable) Domain(d Domain) []Constant {
	out := make([]Constant, len(g.byDomain[d]))
	copy(out, g.byDomain[d])
	return out
}
