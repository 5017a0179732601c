package browser

import (
	"strings"
	"testing"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name         string
		selector     string
		expectedText string
		want         Locator
	}{
		{
			name:     "xpath",
			selector: "//div[@class='tour']",
			want:     Locator{Strategy: StrategyXPath, Value: "//div[@class='tour']"},
		},
		{
			name:     "grouped xpath",
			selector: "(//div)[1]",
			want:     Locator{Strategy: StrategyXPath, Value: "(//div)[1]"},
		},
		{
			name:     "id",
			selector: "#status",
			want:     Locator{Strategy: StrategyID, Value: "status"},
		},
		{
			name:     "class css",
			selector: ".price-tag",
			want:     Locator{Strategy: StrategyCSS, Value: ".price-tag"},
		},
		{
			name:     "plain css",
			selector: "div.content > span",
			want:     Locator{Strategy: StrategyCSS, Value: "div.content > span"},
		},
		{
			name:         "auto with expected text",
			selector:     "auto",
			expectedText: "Christmas 2026",
			want:         Locator{Strategy: StrategyAuto, Value: "Christmas 2026"},
		},
		{
			name:         "empty selector with expected text",
			selector:     "",
			expectedText: "Christmas 2026",
			want:         Locator{Strategy: StrategyAuto, Value: "Christmas 2026"},
		},
		{
			name:     "auto without expected text degrades to body",
			selector: "auto",
			want:     Locator{Strategy: StrategyCSS, Value: "body"},
		},
		{
			name:     "whitespace trimmed",
			selector: "  #status  ",
			want:     Locator{Strategy: StrategyID, Value: "status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSelector(tt.selector, tt.expectedText)
			if got != tt.want {
				t.Errorf("ParseSelector(%q, %q) = %+v, want %+v", tt.selector, tt.expectedText, got, tt.want)
			}
		})
	}
}

func TestLocatorXPath(t *testing.T) {
	auto := Locator{Strategy: StrategyAuto, Value: "Christmas 2026"}
	if got := auto.XPath(); got != "//*[contains(text(), 'Christmas 2026')]" {
		t.Errorf("auto XPath = %q", got)
	}

	raw := Locator{Strategy: StrategyXPath, Value: "//div"}
	if got := raw.XPath(); got != "//div" {
		t.Errorf("xpath XPath = %q", got)
	}

	css := Locator{Strategy: StrategyCSS, Value: "body"}
	if got := css.XPath(); got != "" {
		t.Errorf("css locators have no XPath, got %q", got)
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"it's here", `"it's here"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "both"`, `concat('it', "'", 's "both"')`},
	}

	for _, tt := range tests {
		if got := xpathLiteral(tt.in); got != tt.want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestContainsTextXPathQuoting(t *testing.T) {
	got := containsTextXPath(`it's "both"`)
	if !strings.HasPrefix(got, "//*[contains(text(), concat(") {
		t.Errorf("mixed quotes must use concat(): %s", got)
	}
}
