// cpdump 打印 class 文件的常量池和成员概要
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/encoding/json"

	perrors "github.com/tangzhangming/pack200/internal/errors"
	"github.com/tangzhangming/pack200/internal/jvmgen"
)

const (
	Version = "0.1.0"
)

func main() {
	fs := flag.NewFlagSet("cpdump", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the constant pool as JSON")
	members := fs.Bool("members", false, "also list fields, methods and attributes")
	version := fs.Bool("version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Println("Usage: cpdump [options] <file.class>...")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if *version {
		fmt.Printf("cpdump %s\n", Version)
		return
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	reporter := perrors.NewReporter(os.Stderr)
	for _, filename := range fs.Args() {
		if err := dumpFile(os.Stdout, filename, *asJSON, *members); err != nil {
			reporter.Report(fmt.Errorf("%s: %w", filename, err))
		}
	}
	if reporter.HasErrors() {
		reporter.Summary()
		os.Exit(1)
	}
}

func dumpFile(w io.Writer, filename string, asJSON, members bool) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	cls, err := jvmgen.ReadClass(data)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(w, filename, len(data), cls)
	}

	fmt.Fprintf(w, "%s: %s (version %d.%d, %s)\n", filename, cls.ClassName(cls.ThisClass),
		cls.MajorVersion, cls.MinorVersion, humanize.Bytes(uint64(len(data))))
	fmt.Fprintf(w, "constant pool: count %d\n", cls.PoolCount)
	for _, item := range cls.Pool {
		fmt.Fprintf(w, "  %s\n", item)
	}
	if members {
		dumpMembers(w, cls)
	}
	return nil
}

type poolJSON struct {
	File  string     `json:"file"`
	Size  int        `json:"size"`
	Class string     `json:"class"`
	Count int        `json:"count"`
	Items []itemJSON `json:"items"`
}

type itemJSON struct {
	Index int    `json:"index"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

func writeJSON(w io.Writer, filename string, size int, cls *jvmgen.Class) error {
	out := poolJSON{
		File:  filename,
		Size:  size,
		Class: cls.ClassName(cls.ThisClass),
		Count: int(cls.PoolCount),
		Items: make([]itemJSON, 0, len(cls.Pool)),
	}
	for _, item := range cls.Pool {
		out.Items = append(out.Items, itemJSON{
			Index: item.Index,
			Tag:   jvmgen.TagName(item.Tag),
			Value: item.String(),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func dumpMembers(w io.Writer, cls *jvmgen.Class) {
	dumpAttributes(w, cls, "  ", cls.Attributes)
	for _, f := range cls.Fields {
		fmt.Fprintf(w, "field %s %s flags=0x%04x\n", cls.Utf8(f.NameIndex), cls.Utf8(f.DescriptorIndex), f.AccessFlags)
		dumpAttributes(w, cls, "  ", f.Attributes)
	}
	for _, m := range cls.Methods {
		fmt.Fprintf(w, "method %s%s flags=0x%04x\n", cls.Utf8(m.NameIndex), cls.Utf8(m.DescriptorIndex), m.AccessFlags)
		dumpAttributes(w, cls, "  ", m.Attributes)
		if attr, ok := cls.FindAttribute(m.Attributes, jvmgen.AttrCode); ok {
			code, err := jvmgen.ReadCode(attr.Info)
			if err != nil {
				fmt.Fprintf(w, "  bad Code attribute: %v\n", err)
				continue
			}
			fmt.Fprintf(w, "  code: %d bytes, max_stack=%d, max_locals=%d, %d handler(s)\n",
				len(code.Code), code.MaxStack, code.MaxLocals, len(code.Exceptions))
			dumpAttributes(w, cls, "    ", code.Attributes)
		}
	}
}

func dumpAttributes(w io.Writer, cls *jvmgen.Class, indent string, attrs []jvmgen.AttributeInfo) {
	for _, a := range attrs {
		fmt.Fprintf(w, "%sattribute %s (%d bytes)\n", indent, cls.Utf8(a.NameIndex), len(a.Info))
	}
}
