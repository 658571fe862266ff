package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

const sampleCSV = `Service Name,Port Number,Transport Protocol,Description
ftp,21,tcp,File Transfer Protocol [Control]
ftp,21,udp,File Transfer Protocol [Control]
ssh,22,tcp,The Secure Shell (SSH) Protocol
x11,6000-6063,tcp,X Window System
,23,tcp,unassigned
http,80,tcp,World Wide Web HTTP
www,80,tcp,World Wide Web HTTP
`

func TestWriteTable(t *testing.T) {
	out := &bytes.Buffer{}
	n, err := writeTable(bufio.NewWriter(out), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("writeTable: %v", err)
	}
	if n != 3 {
		t.Errorf("wrote %d ports, want 3", n)
	}

	src := out.String()
	for _, want := range []string{"package scan", "21: \"ftp\",", "22: \"ssh\",", "80: \"http\","} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q:\n%s", want, src)
		}
	}
	for _, unwanted := range []string{"6000", "\"www\"", "udp"} {
		if strings.Contains(src, unwanted) {
			t.Errorf("generated source contains %q", unwanted)
		}
	}
}
