package jvmgen

import (
	"bytes"
	"encoding/binary"
)

// ByteWriter class 文件字节写入器 (大端序)
type ByteWriter struct {
	buf bytes.Buffer
}

// NewByteWriter 创建新的字节写入器
func NewByteWriter() *ByteWriter {
	return &ByteWriter{}
}

// WriteByte 写入单个字节
func (w *ByteWriter) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

// WriteU8 写入无符号字节
func (w *ByteWriter) WriteU8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteU16 写入无符号短整型
func (w *ByteWriter) WriteU16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteI16 写入有符号短整型
func (w *ByteWriter) WriteI16(v int16) {
	w.WriteU16(uint16(v))
}

// WriteU32 写入无符号整型
func (w *ByteWriter) WriteU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteI32 写入有符号整型
func (w *ByteWriter) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

// WriteU64 写入无符号长整型
func (w *ByteWriter) WriteU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes 写入字节数组
func (w *ByteWriter) WriteBytes(b []byte) {
	w.buf.Write(b)
}

// WriteString 写入原始字符串字节 (不带长度前缀)
func (w *ByteWriter) WriteString(s string) {
	w.buf.WriteString(s)
}

// Bytes 返回已写入的字节
func (w *ByteWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Len 返回当前长度
func (w *ByteWriter) Len() int {
	return w.buf.Len()
}

// Reset 重置写入器
func (w *ByteWriter) Reset() {
	w.buf.Reset()
}

// PutU16 在预留位置写入无符号短整型
func PutU16(b []byte, pos int, v uint16) {
	binary.BigEndian.PutUint16(b[pos:], v)
}

// PutI16 在预留位置写入有符号短整型
func PutI16(b []byte, pos int, v int16) {
	binary.BigEndian.PutUint16(b[pos:], uint16(v))
}

// PutI32 在预留位置写入有符号整型
func PutI32(b []byte, pos int, v int32) {
	binary.BigEndian.PutUint32(b[pos:], uint32(v))
}
