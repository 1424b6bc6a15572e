package scanner

import "testing"

func TestExtractObject(t *testing.T) {
	testCases := []struct {
		desc     string
		payload  string
		expected string
		found    bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"leading noise", `the answer: {"a":1}`, `{"a":1}`, true},
		{"trailing noise", `{"a":1} and more`, `{"a":1}`, true},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"first of several", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"brace inside string", `{"text":"keep {this} inside"}`, `{"text":"keep {this} inside"}`, true},
		{"escaped quote inside string", `{"text":"a \" b}"}`, `{"text":"a \" b}"}`, true},
		{"unbalanced open", `{"a":1`, ``, false},
		{"stray close before object", `} {"a":1}`, `{"a":1}`, true},
		{"no object", `plain text`, ``, false},
		{"empty", ``, ``, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := ExtractObject([]byte(tc.payload))
			if ok != tc.found {
				t.Fatalf("found mismatch: got %v want %v", ok, tc.found)
			}
			if tc.found && string(got) != tc.expected {
				t.Fatalf("object mismatch: got %q want %q", got, tc.expected)
			}
		})
	}
}

func TestTrimSpace(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"  {\"a\":1}\n", `{"a":1}`},
		{"\t\r\n", ""},
		{"no-op", "no-op"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := string(TrimSpace([]byte(tc.input))); got != tc.expected {
			t.Fatalf("trim mismatch: got %q want %q", got, tc.expected)
		}
	}
}
