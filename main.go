package main

import "github.com/liuxd6825/quizsmoke/cmd"

func main() {
	cmd.Execute()
}
