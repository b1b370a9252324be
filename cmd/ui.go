package cmd

import (
	"fmt"

	"github.com/liuxd6825/quizsmoke/lib/consts"
)

func printBanner(gs *globalState) {
	if gs.flags.noColor {
		_, _ = fmt.Fprintf(gs.stdout, "\n%s\n\n", consts.Banner())
		return
	}
	_, _ = BannerColor.Fprintf(gs.stdout, "\n%s\n\n", consts.Banner())
}
