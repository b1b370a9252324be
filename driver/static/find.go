package static

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/liuxd6825/quizsmoke/common"
)

// Find evaluates loc on doc with the XPath expression the browser backends
// use, so the first element of the selection is the one they pick.
func Find(doc *goquery.Document, loc common.Locator) (*goquery.Selection, error) {
	xp, err := loc.XPath()
	if err != nil {
		return nil, err
	}
	if len(doc.Nodes) == 0 {
		return doc.Selection, nil
	}
	nodes, err := htmlquery.QueryAll(doc.Nodes[0], xp)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", loc, err)
	}
	return doc.FindNodes(nodes...), nil
}
