// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Stellven/KBSkills/pkg/types"
)

var slotPattern = regexp.MustCompile(`\{([^{}\n]+)\}`)

// Slots replaces every {name} in tmpl whose name is a key of values.
// Unknown slots, including literal JSON braces, are left verbatim.
func Slots(tmpl string, values map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[strings.TrimSpace(m[1:len(m)-1])]; ok {
			return v
		}
		return m
	})
}

// StepValues builds the slot values for a framework step: {topic},
// {knowledge}, {previous}, and {step:N} / {step:Name} for each completed
// step.
func StepValues(topic, knowledge string, done []types.StepOutput) map[string]string {
	values := map[string]string{
		"topic":     topic,
		"knowledge": knowledge,
		"previous":  "",
	}
	for i, s := range done {
		out := strings.TrimSpace(s.Output)
		values["step:"+strconv.Itoa(i+1)] = out
		if s.Name != "" {
			values["step:"+s.Name] = out
		}
	}
	if n := len(done); n > 0 {
		values["previous"] = strings.TrimSpace(done[n-1].Output)
	}
	return values
}
