// rmqctl 是区间最小值 / 最近公共祖先索引的命令行工具。
package main

import (
	"fmt"
	"os"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
