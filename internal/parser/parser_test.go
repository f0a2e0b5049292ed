package parser

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"ocean", Command{Kind: Submit, Arg: "ocean"}},
		{"  ocean \n", Command{Kind: Submit, Arg: "ocean"}},
		{"two words", Command{Kind: Submit, Arg: "two words"}},
		{"", Command{Kind: Submit, Arg: ""}},
		{"   ", Command{Kind: Submit, Arg: ""}},
		{"/connect", Command{Kind: Connect}},
		{"/C", Command{Kind: Connect}},
		{"/init", Command{Kind: Init}},
		{"/refresh", Command{Kind: Refresh}},
		{"/r", Command{Kind: Refresh}},
		{"/help", Command{Kind: Help}},
		{"/?", Command{Kind: Help}},
		{"/quit", Command{Kind: Quit}},
		{"/exit", Command{Kind: Quit}},
		{"/submit forest", Command{Kind: Submit, Arg: "forest"}},
		{"/s", Command{Kind: Submit, Arg: ""}},
		{"//path", Command{Kind: Submit, Arg: "/path"}},
		{"/bogus arg", Command{Kind: Unknown, Arg: "bogus"}},
		{"/", Command{Kind: Unknown, Arg: ""}},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if Submit.String() != "submit" || Quit.String() != "quit" || Kind(99).String() != "unknown" {
		t.Error("unexpected kind names")
	}
}
