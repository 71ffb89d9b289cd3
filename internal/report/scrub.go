package report

import (
	"strings"

	"github.com/programme-lv/judgehost/api"
)

// scrubbed returns res with local path prefixes removed from every
// free-text field so host filesystem layout never leaks to the server
func (r *Reporter) scrubbed(res api.Result) api.Result {
	if len(r.scrub) == 0 {
		return res
	}
	res.CompilerText = r.scrubText(res.CompilerText)
	res.Message = r.scrubText(res.Message)
	if res.Case != nil {
		c := *res.Case
		c.Message = r.scrubText(c.Message)
		res.Case = &c
	}
	if len(res.Cases) > 0 {
		cases := make([]api.CaseResult, len(res.Cases))
		copy(cases, res.Cases)
		for i := range cases {
			cases[i].Message = r.scrubText(cases[i].Message)
		}
		res.Cases = cases
	}
	return res
}

func (r *Reporter) scrubText(s string) string {
	if s == "" {
		return s
	}
	for _, prefix := range r.scrub {
		if prefix == "" {
			continue
		}
		s = strings.ReplaceAll(s, prefix, "/")
	}
	return s
}
