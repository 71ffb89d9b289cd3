package report

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/programme-lv/judgehost/api"
)

// TerminalSender pretty-prints outgoing result messages. Used for
// local debugging runs next to (or instead of) the socket sender.
type TerminalSender struct{}

func NewTerminalSender() *TerminalSender { return &TerminalSender{} }

var (
	termNext = color.New(color.FgCyan)
	termEnd  = color.New(color.FgGreen, color.Bold)
	termCase = color.New(color.Faint)
)

func (t *TerminalSender) Send(msg any) error {
	m, ok := msg.(api.ResultMsg)
	if !ok {
		fmt.Printf("%+v\n", msg)
		return nil
	}

	switch m.Key {
	case api.KeyNext:
		termNext.Printf("[%s] next", m.RID)
	case api.KeyEnd:
		termEnd.Printf("[%s] end", m.RID)
	}
	if m.Status != nil {
		fmt.Printf(" status=%d", *m.Status)
	}
	if m.Score != nil {
		fmt.Printf(" score=%d", *m.Score)
	}
	if m.TimeMs != nil {
		fmt.Printf(" time=%dms", *m.TimeMs)
	}
	if m.MemoryKiB != nil {
		fmt.Printf(" mem=%dKiB", *m.MemoryKiB)
	}
	if m.Message != "" {
		fmt.Printf(" %q", m.Message)
	}
	fmt.Println()

	if m.CompilerText != "" {
		fmt.Println(m.CompilerText)
	}
	if m.Case != nil {
		printCase(*m.Case)
	}
	for _, c := range m.Cases {
		printCase(c)
	}
	return nil
}

func printCase(c api.CaseResult) {
	termCase.Printf("  case %d: status=%d score=%d time=%dms mem=%dKiB",
		c.ID, c.Status, c.Score, c.TimeMs, c.MemoryKiB)
	if c.Message != "" {
		fmt.Printf(" %q", c.Message)
	}
	fmt.Println()
}
