// Command dashhub は個人用ダッシュボードのバックエンドAPIサーバー。
//
// 使い方:
//
//	dashhub [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/dashhub/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dashhub: %v\n", err)
		os.Exit(1)
	}
}
