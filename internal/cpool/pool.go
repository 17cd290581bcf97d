package cpool

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"go.uber.org/zap"

	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

// poolState 常量池所处阶段
type poolState int

const (
	stateBuilding  poolState = iota // 收集条目
	stateResolving                  // 三阶段解析进行中
	stateResolved                   // 索引已最终确定
)

// Option 常量池选项
type Option func(*Pool)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStrictOrdering 严格模式下，既无全局索引又不是 UTF8/Class 的条目
// 在初始排序时视为不变量破坏；非严格模式下它们按排序域和键排在最后
func WithStrictOrdering(strict bool) Option {
	return func(p *Pool) {
		p.strict = strict
	}
}

// WithGlobalTable 没有自带全局索引的常量按键从全局表取得全局索引
func WithGlobalTable(g *GlobalTable) Option {
	return func(p *Pool) {
		p.global = g
	}
}

// Pool 类常量池
//
// 常量条目保存在按序增长的数组中，另有键到数组位置的查找表；
// 非常量池条目（属性等）保存在辅助列表中，只参与解析，不占槽位。
// 解析得到的索引只保存在 Pool 中，常量实例在解析过程中不被修改，
// 因此同一个常量可以同时出现在并发装配的多个常量池里。
// 一个 Pool 只属于一次 class 装配，不支持并发修改。
type Pool struct {
	entries []Constant     // 常量条目（逻辑顺序）
	lookup  map[string]int // 键 -> entries 下标

	others   []Entry // 辅助条目
	otherSet map[Entry]struct{}

	mustStart    []Constant // 必须位于常量池开头的条目（按标记顺序）
	mustStartSet map[string]struct{}

	pending []Entry // 尚未展开嵌套条目的工作队列

	// 索引缓存，排序后失效，首次查找时重建
	slots      []Constant     // 槽位 -> 条目，Long/Double 的第二个槽位指向同一条目
	indexCache map[string]int // 键 -> 1-based 索引
	cacheValid bool

	global *GlobalTable

	state  poolState
	final  bool // 正在进行必须前置重排之后的最后一遍解析
	strict bool
	logger *zap.Logger
}

// New 创建常量池
func New(opts ...Option) *Pool {
	p := &Pool{
		lookup:       make(map[string]int),
		otherSet:     make(map[Entry]struct{}),
		mustStartSet: make(map[string]struct{}),
		strict:       true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ============================================================================
// 收集条目
// ============================================================================

// Add 加入条目。已存在相等的常量时返回已有实例，调用者应改用返回值。
func (p *Pool) Add(e Entry) Entry {
	if e == nil {
		return nil
	}
	if c, ok := e.(Constant); ok {
		return p.addConstant(c)
	}
	if _, ok := p.otherSet[e]; ok {
		return e
	}
	p.otherSet[e] = struct{}{}
	p.others = append(p.others, e)
	p.pending = append(p.pending, e)
	p.touch()
	return e
}

func (p *Pool) addConstant(c Constant) Constant {
	key := c.Key()
	if slot, ok := p.lookup[key]; ok {
		existing := p.entries[slot]
		if existing.Tag() != c.Tag() {
			panic(perrors.Invariant(perrors.P0102, "key %q shared by %s and %s", key, existing, c))
		}
		return existing
	}
	p.lookup[key] = len(p.entries)
	p.entries = append(p.entries, c)
	p.pending = append(p.pending, c)
	p.touch()
	return c
}

// touch 新条目使已有的解析结果失效
func (p *Pool) touch() {
	p.cacheValid = false
	if p.state == stateResolved {
		p.state = stateBuilding
	}
}

// AddWithNestedEntries 加入条目并展开其全部嵌套条目
func (p *Pool) AddWithNestedEntries(e Entry) Entry {
	canonical := p.Add(e)
	p.AddNestedEntries()
	return canonical
}

// AddNestedEntries 展开嵌套条目直到不动点
// 每个新加入的条目恰好被询问一次，新发现的条目再次入队
func (p *Pool) AddNestedEntries() {
	for len(p.pending) > 0 {
		e := p.pending[0]
		p.pending = p.pending[1:]
		for _, nested := range e.NestedEntries() {
			p.Add(nested)
		}
		if pinner, ok := e.(Pinner); ok {
			for _, pinned := range pinner.PinnedEntries() {
				p.MarkMustStart(pinned)
			}
		}
	}
	p.pending = nil
}

// MarkMustStart 标记条目必须位于常量池开头 (索引 <= 255)
// 条目不在池中时先加入；重复标记保持首次标记的顺序
func (p *Pool) MarkMustStart(e Entry) {
	c, ok := e.(Constant)
	if !ok {
		return
	}
	canonical := p.addConstant(c)
	key := canonical.Key()
	if _, ok := p.mustStartSet[key]; ok {
		return
	}
	p.mustStartSet[key] = struct{}{}
	p.mustStart = append(p.mustStart, canonical)
	p.cacheValid = false
}

// ============================================================================
// 解析
// ============================================================================

// Resolve 三阶段解析：初始排序、首次解析、必须前置的重排与再次解析
// 对同一组条目重复调用结果相同
func (p *Pool) Resolve() (err error) {
	defer perrors.Recover(&err)

	p.AddNestedEntries()
	p.state = stateResolving
	p.final = false

	// 阶段 1：初始排序
	if err := p.initialSort(); err != nil {
		p.state = stateBuilding
		return err
	}

	// 阶段 2：首次解析，得到临时索引
	p.relayout(p.entries)
	if err := p.resolveAll("first"); err != nil {
		p.state = stateBuilding
		return err
	}

	// 阶段 3：必须前置的条目移到最前，重建缓存后再次解析
	p.sortMustStart()
	if n := p.mustStartSlots(); n > jvmgen.MaxSingleByteRef {
		p.state = stateBuilding
		return perrors.Malformed(perrors.P0006, "%d single-byte referenced slots, limit is %d", n, jvmgen.MaxSingleByteRef)
	}
	p.final = true
	err = p.resolveAll("second")
	p.final = false
	if err != nil {
		p.state = stateBuilding
		return err
	}

	if n := len(p.slots); n > jvmgen.MaxPoolSlots-1 {
		p.state = stateBuilding
		return perrors.Malformed(perrors.P0007, "constant pool needs %d slots, limit is %d", n, jvmgen.MaxPoolSlots-1)
	}

	p.state = stateResolved
	p.logger.Debug("constant pool resolved",
		zap.Int("entries", len(p.entries)),
		zap.Int("slots", len(p.slots)),
		zap.Int("mustStart", len(p.mustStart)),
		zap.Int("others", len(p.others)),
	)
	return nil
}

// resolveAll 按当前顺序解析全部条目（先常量，后辅助条目）
// 解析过程中不允许加入新条目
func (p *Pool) resolveAll(pass string) error {
	before := len(p.entries) + len(p.others)
	for _, c := range p.entries {
		if err := c.Resolve(p); err != nil {
			return err
		}
	}
	for _, e := range p.others {
		if err := e.Resolve(p); err != nil {
			return err
		}
	}
	if after := len(p.entries) + len(p.others); after != before {
		return perrors.Invariant(perrors.P0101, "%s resolve pass added %d entries", pass, after-before)
	}
	return nil
}

// FinalPass 是否处于最后一遍解析，此时得到的索引就是最终索引
func (p *Pool) FinalPass() bool {
	return p.final
}

// globalIndex 常量自带的全局索引优先，其次查全局表
func (p *Pool) globalIndex(c Constant) int {
	if gi := c.GlobalIndex(); gi != NoGlobalIndex || p.global == nil {
		return gi
	}
	return p.global.IndexOf(c.Key())
}

// initialSort 分桶排序：有全局索引的按全局索引，其余 UTF8 按文本，
// 其余 Class 按类名，三桶按此顺序拼接
// 文本按 UTF-16 码元比较，与 Java 的 String.compareTo 一致
func (p *Pool) initialSort() error {
	var global, utf8s, classes, rest []Constant
	for _, c := range p.entries {
		switch {
		case p.globalIndex(c) != NoGlobalIndex:
			global = append(global, c)
		case c.Tag() == jvmgen.ConstantUtf8:
			utf8s = append(utf8s, c)
		case c.Tag() == jvmgen.ConstantClass:
			classes = append(classes, c)
		case p.strict:
			return perrors.Invariant(perrors.P0103, "entry without global index").WithEntry(c.String())
		default:
			rest = append(rest, c)
		}
	}

	sort.SliceStable(global, func(i, j int) bool {
		gi, gj := p.globalIndex(global[i]), p.globalIndex(global[j])
		if gi != gj {
			return gi < gj
		}
		return global[i].Key() < global[j].Key()
	})
	sortByText(utf8s, func(c Constant) string { return c.(*Utf8).value })
	sortByText(classes, func(c Constant) string { return c.(*Class).Name() })
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Domain() != rest[j].Domain() {
			return rest[i].Domain() < rest[j].Domain()
		}
		return rest[i].Key() < rest[j].Key()
	})

	sorted := make([]Constant, 0, len(p.entries))
	sorted = append(sorted, global...)
	sorted = append(sorted, utf8s...)
	sorted = append(sorted, classes...)
	sorted = append(sorted, rest...)
	p.reorder(sorted)
	return nil
}

// sortByText 按文本的 UTF-16 码元序排序
// 补充平面字符与 U+E000-U+FFFF 混排时，这与 Go 字符串的字节序不同
func sortByText(cs []Constant, text func(Constant) string) {
	units := make(map[Constant][]uint16, len(cs))
	for _, c := range cs {
		units[c] = utf16.Encode([]rune(text(c)))
	}
	sort.SliceStable(cs, func(i, j int) bool {
		return compareUnits(units[cs[i]], units[cs[j]]) < 0
	})
}

func compareUnits(a, b []uint16) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// sortMustStart 必须前置的条目按标记顺序排在最前，其余保持阶段 1 的顺序
func (p *Pool) sortMustStart() {
	sorted := make([]Constant, 0, len(p.entries))
	for _, c := range p.mustStart {
		sorted = append(sorted, p.entries[p.lookup[c.Key()]])
	}
	for _, c := range p.entries {
		if _, ok := p.mustStartSet[c.Key()]; !ok {
			sorted = append(sorted, c)
		}
	}
	p.reorder(sorted)
	p.relayout(sorted)
}

// reorder 替换条目顺序并重建键查找表
func (p *Pool) reorder(sorted []Constant) {
	p.entries = sorted
	p.lookup = make(map[string]int, len(sorted))
	for i, c := range sorted {
		p.lookup[c.Key()] = i
	}
	p.cacheValid = false
}

// relayout 按给定顺序展开槽位 (Long/Double 占两个)
func (p *Pool) relayout(order []Constant) {
	p.slots = p.slots[:0]
	for _, c := range order {
		for i := 0; i < c.Width(); i++ {
			p.slots = append(p.slots, c)
		}
	}
	p.cacheValid = false
}

// ensureCache 首次查找时重建索引缓存
func (p *Pool) ensureCache() {
	if p.cacheValid {
		return
	}
	p.indexCache = make(map[string]int, len(p.entries))
	for i, c := range p.slots {
		key := c.Key()
		if _, seen := p.indexCache[key]; !seen {
			p.indexCache[key] = i + 1
		}
	}
	p.cacheValid = true
}

func (p *Pool) mustStartSlots() int {
	n := 0
	for _, c := range p.mustStart {
		n += c.Width()
	}
	return n
}

// ============================================================================
// 查询
// ============================================================================

// IndexOf 返回条目的 1-based 索引，不在池中返回 -1
// 在解析开始之前调用属于不变量破坏
func (p *Pool) IndexOf(e Entry) int {
	if p.state == stateBuilding {
		panic(perrors.Invariant(perrors.P0100, "IndexOf before Resolve"))
	}
	c, ok := e.(Constant)
	if !ok {
		return -1
	}
	p.ensureCache()
	if idx, ok := p.indexCache[c.Key()]; ok {
		return idx
	}
	return -1
}

// Require 返回条目索引，条目不在池中或超出 u2 范围时返回输入错误
func (p *Pool) Require(e Entry) (uint16, error) {
	idx := p.IndexOf(e)
	if idx < 0 {
		return 0, perrors.Malformed(perrors.P0003, "reference to entry never added to the pool").WithEntry(describe(e))
	}
	if idx > jvmgen.MaxPoolSlots {
		return 0, perrors.Malformed(perrors.P0002, "index %d out of range", idx).WithEntry(describe(e))
	}
	return uint16(idx), nil
}

// ref 编码时取得被引用条目的最终索引
func (p *Pool) ref(owner Constant, e Entry) uint16 {
	if p.state != stateResolved {
		panic(perrors.Invariant(perrors.P0104, "encode before resolve").WithEntry(owner.String()))
	}
	idx, err := p.Require(e)
	if err != nil {
		panic(perrors.Invariant(perrors.P0104, "resolved pool lost a referenced entry").WithEntry(owner.String()))
	}
	return idx
}

// Get 按 1-based 索引取条目，越界属于不变量破坏
func (p *Pool) Get(index int) Constant {
	if p.state != stateResolved {
		panic(perrors.Invariant(perrors.P0100, "Get before Resolve"))
	}
	if index < 1 || index > len(p.slots) {
		panic(perrors.Invariant(perrors.P0002, "index %d outside 1..%d", index, len(p.slots)))
	}
	return p.slots[index-1]
}

// Resolved 是否已完成解析
func (p *Pool) Resolved() bool {
	return p.state == stateResolved
}

// Size 常量条目数（去重后）
func (p *Pool) Size() int {
	return len(p.entries)
}

// SlotCount 已占用的槽位数，仅在解析后有意义
func (p *Pool) SlotCount() int {
	return len(p.slots)
}

// Entries 返回当前顺序的常量条目
func (p *Pool) Entries() []Constant {
	out := make([]Constant, len(p.entries))
	copy(out, p.entries)
	return out
}

// Others 返回辅助条目
func (p *Pool) Others() []Entry {
	out := make([]Entry, len(p.others))
	copy(out, p.others)
	return out
}

// MustStart 返回必须前置的条目（按标记顺序）
func (p *Pool) MustStart() []Constant {
	out := make([]Constant, len(p.mustStart))
	copy(out, p.mustStart)
	return out
}

// Encode 写出 constant_pool_count 与全部条目
func (p *Pool) Encode(w *jvmgen.ByteWriter) {
	if p.state != stateResolved {
		panic(perrors.Invariant(perrors.P0100, "Encode before Resolve"))
	}
	w.WriteU16(uint16(len(p.slots) + 1))
	for _, c := range p.entries {
		c.Encode(w, p)
	}
}

// Dump 返回可读的常量池列表，解析前以 ? 代替索引
func (p *Pool) Dump() string {
	var sb strings.Builder
	for i, c := range p.entries {
		if p.state == stateBuilding {
			fmt.Fprintf(&sb, "?%d = %s\n", i, c)
			continue
		}
		fmt.Fprintf(&sb, "#%d = %s\n", p.IndexOf(c), c)
	}
	return sb.String()
}

func describe(e Entry) string {
	if s, ok := e.(interface{ String() string }); ok {
		return s.String()
	}
	return "non-constant entry"
}
