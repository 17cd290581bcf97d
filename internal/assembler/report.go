package assembler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/segmentio/encoding/json"
)

// 报告格式
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// 规范 CBOR 编码，相同报告得到相同字节
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("assembler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report 一个 class 的常量池布局摘要
type Report struct {
	Class     string `json:"class" cbor:"1,keyasint"`
	Entries   int    `json:"entries" cbor:"2,keyasint"`
	Slots     int    `json:"slots" cbor:"3,keyasint"`
	MustStart int    `json:"mustStart" cbor:"4,keyasint"`
	Bytes     int    `json:"bytes" cbor:"5,keyasint"`
}

// Summary 整批装配的报告
type Summary struct {
	RunID   string   `json:"runId" cbor:"1,keyasint"`
	Stats   Stats    `json:"stats" cbor:"2,keyasint"`
	Classes []Report `json:"classes" cbor:"3,keyasint"`
}

// Summarize 汇总统计和成功装配的 class
func (a *Assembler) Summarize(results []*Result) Summary {
	s := Summary{RunID: a.runID, Stats: a.Stats(), Classes: []Report{}}
	for _, r := range results {
		if r != nil {
			s.Classes = append(s.Classes, r.Report)
		}
	}
	return s
}

// WriteReport 按 format 写出报告，JSON 供人阅读，CBOR 供工具读取
func WriteReport(w io.Writer, s Summary, format string) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON, "":
		if data, err = json.MarshalIndent(s, "", "  "); err == nil {
			data = append(data, '\n')
		}
	case FormatCBOR:
		data, err = cborEncMode.Marshal(s)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadReport 读取 WriteReport 写出的报告
func ReadReport(r io.Reader, format string) (Summary, error) {
	var s Summary
	data, err := io.ReadAll(r)
	if err != nil {
		return s, err
	}
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &s)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	default:
		err = fmt.Errorf("unknown report format %q", format)
	}
	return s, err
}

// WriteClasses 把装配结果写到 dir 下，按内部名称建立子目录
func WriteClasses(dir string, results []*Result) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(r.Name)+".class")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, r.Bytes, 0644); err != nil {
			return err
		}
	}
	return nil
}
