// Package assembler 批量装配 class 文件
//
// 每个 class 在自己的 goroutine 中装配并独占自己的常量池；
// 多个 class 共享的只有一张装配前就已封闭的全局表和常量实例，二者都只读访问。
// 属性、成员、指令等辅助条目在解析时会被写入，必须只属于一个 class。
package assembler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tangzhangming/pack200/internal/classfile"
	"github.com/tangzhangming/pack200/internal/config"
	"github.com/tangzhangming/pack200/internal/cpool"
	perrors "github.com/tangzhangming/pack200/internal/errors"
)

// Result 一个 class 的装配结果
type Result struct {
	Name   string
	Bytes  []byte
	Report Report
}

// Stats 累计统计
type Stats struct {
	Classes   int64 `json:"classes" cbor:"1,keyasint"`
	Failed    int64 `json:"failed" cbor:"2,keyasint"`
	PoolSlots int64 `json:"poolSlots" cbor:"3,keyasint"`
	Bytes     int64 `json:"bytes" cbor:"4,keyasint"`
}

// Assembler 批量装配器
type Assembler struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string

	classes   atomic.Int64
	failed    atomic.Int64
	poolSlots atomic.Int64
	bytes     atomic.Int64
}

// New 创建装配器，cfg 为 nil 时使用默认配置，logger 为 nil 时不输出日志
func New(cfg *config.Config, logger *zap.Logger) *Assembler {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	return &Assembler{cfg: cfg, logger: logger.With(zap.String("run", runID)), runID: runID}
}

// RunID 本装配器的运行标识，写入日志和报告
func (a *Assembler) RunID() string {
	return a.runID
}

// Stats 返回当前统计
func (a *Assembler) Stats() Stats {
	return Stats{
		Classes:   a.classes.Load(),
		Failed:    a.failed.Load(),
		PoolSlots: a.poolSlots.Load(),
		Bytes:     a.bytes.Load(),
	}
}

// Assemble 装配单个 class
// 严格模式下全局表只由这个 class 的条目构成
func (a *Assembler) Assemble(ctx context.Context, cf *classfile.ClassFile) (*Result, error) {
	var global *cpool.GlobalTable
	if a.cfg.Assembler.Strict {
		global = BuildGlobalTable(cf)
	}
	return a.assemble(ctx, cf, global)
}

// AssembleAll 并发装配多个 class，结果与输入一一对应，失败的位置为 nil
// 所有错误合并返回
func (a *Assembler) AssembleAll(ctx context.Context, classes []*classfile.ClassFile) ([]*Result, error) {
	var global *cpool.GlobalTable
	if a.cfg.Assembler.Strict {
		global = BuildGlobalTable(classes...)
		a.logger.Debug("global table sealed", zap.Int("constants", global.Len()))
	}

	results := make([]*Result, len(classes))
	errs := make([]error, len(classes))
	conflicts := claimEntries(classes)

	// 单个 class 失败不影响其他 class，错误留在 errs 中统一合并
	var g errgroup.Group
	g.SetLimit(a.cfg.WorkerCount())
	for i := range classes {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(classes); j++ {
				errs[j] = err
			}
			break
		}
		if err := conflicts[i]; err != nil {
			a.classes.Inc()
			a.failed.Inc()
			a.logger.Error("assembly failed", zap.String("class", classes[i].Name()), zap.Error(err))
			errs[i] = err
			continue
		}
		g.Go(func() error {
			results[i], errs[i] = a.assemble(ctx, classes[i], global)
			return nil
		})
	}
	_ = g.Wait()

	err := multierr.Combine(errs...)
	if err != nil {
		a.logger.Warn("assembly finished with errors",
			zap.Int("classes", len(classes)),
			zap.Int("errors", len(multierr.Errors(err))),
		)
	}
	return results, err
}

func (a *Assembler) assemble(ctx context.Context, cf *classfile.ClassFile, global *cpool.GlobalTable) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.classes.Inc()

	logger := a.logger.With(zap.String("class", cf.Name()))
	cf.MajorVersion = a.cfg.ClassFile.Major
	cf.MinorVersion = a.cfg.ClassFile.Minor
	cf.PoolOptions = []cpool.Option{
		cpool.WithLogger(logger),
		cpool.WithStrictOrdering(a.cfg.Assembler.Strict),
	}
	if global != nil {
		cf.PoolOptions = append(cf.PoolOptions, cpool.WithGlobalTable(global))
	}

	data, err := cf.Assemble()
	if err != nil {
		a.failed.Inc()
		logger.Error("assembly failed", zap.Error(err))
		return nil, err
	}

	p := cf.ConstantPool()
	a.poolSlots.Add(int64(p.SlotCount()))
	a.bytes.Add(int64(len(data)))

	report := Report{
		Class:     cf.Name(),
		Entries:   p.Size(),
		Slots:     p.SlotCount(),
		MustStart: len(p.MustStart()),
		Bytes:     len(data),
	}
	logger.Info("class assembled",
		zap.Int("entries", report.Entries),
		zap.Int("slots", report.Slots),
		zap.Int("bytes", report.Bytes),
	)
	return &Result{Name: cf.Name(), Bytes: data, Report: report}, nil
}

// BuildGlobalTable 从所有 class 的条目建立并封闭全局表
func BuildGlobalTable(classes ...*classfile.ClassFile) *cpool.GlobalTable {
	g := cpool.NewGlobalTable()
	for _, cf := range classes {
		g.InternAll(cf.Roots()...)
	}
	g.Seal()
	return g
}

// claimEntries 辅助条目归第一个引用它的 class 所有
// 之后的 class 再引用同一实例时得到 P0009，不参与装配
func claimEntries(classes []*classfile.ClassFile) []error {
	owner := make(map[cpool.Entry]int)
	errs := make([]error, len(classes))
	for i, cf := range classes {
		seen := make(map[cpool.Entry]struct{})
		queue := cf.Roots()
		for len(queue) > 0 {
			e := queue[0]
			queue = queue[1:]
			if _, ok := e.(cpool.Constant); ok {
				continue
			}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			if j, ok := owner[e]; ok {
				errs[i] = perrors.Malformed(perrors.P0009, "entry already belongs to %s", classes[j].Name()).
					WithEntry(fmt.Sprintf("%T", e)).InMethod(cf.Name(), "")
				break
			}
			owner[e] = i
			queue = append(queue, e.NestedEntries()...)
		}
	}
	return errs
}
