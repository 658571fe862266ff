package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const ianaCSV = "https://www.iana.org/assignments/service-names-port-numbers/service-names-port-numbers.csv"

//用于更新已知端口列表,由scan/ports.go中的go:generate调用
func main() {
	out := flag.String("o", "./scan/known.go", "output file")
	flag.Parse()

	resp, err := http.Get(ianaCSV)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("下载端口列表失败: %s", resp.Status)
	}

	output, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer output.Close()

	n, err := writeTable(bufio.NewWriter(output), resp.Body)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("写入%d个tcp端口到%s", n, *out)
}

func writeTable(w *bufio.Writer, src io.Reader) (int, error) {
	fmt.Fprintf(w, "// Code generated by tools/update.go; DO NOT EDIT.\n\npackage scan\n\n// data from %s\nvar knownPorts = map[int]string{", ianaCSV)

	count := 0
	lastPort := ""
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		//只保留tcp,同一端口只取第一个服务名
		if len(record) < 3 || record[2] != "tcp" || record[0] == "" || record[1] == "" || record[1] == lastPort {
			continue
		}
		if _, err := strconv.Atoi(record[1]); err != nil { //跳过 6000-6063 这样的范围
			continue
		}

		lastPort = record[1]
		fmt.Fprintf(w, "\n\t%s: %q,", record[1], record[0])
		count++
	}

	fmt.Fprint(w, "\n}\n")
	return count, w.Flush()
}
