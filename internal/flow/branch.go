package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BTreeMap/SehaCoach/internal/models"
)

// Option list formatting constants
const (
	// OptionFormat is the format string for one quick reply in a plain-text transport
	OptionFormat = "\n%d. %s"
	// OptionsHeader separates the reply text from its numbered options
	OptionsHeader = "\n"
)

// FormatReply renders a reply for transports without buttons: the text followed by
// its options as a numbered list.
func FormatReply(r models.Reply) string {
	if len(r.Options) == 0 {
		return r.Text
	}
	var sb strings.Builder
	sb.WriteString(r.Text)
	sb.WriteString(OptionsHeader)
	for i, opt := range r.Options {
		sb.WriteString(fmt.Sprintf(OptionFormat, i+1, opt))
	}
	return sb.String()
}

// SelectOption maps a bare number reply onto the option it names. Any other input,
// or a number outside the list, is returned unchanged.
func SelectOption(input string, options []string) string {
	n, err := strconv.Atoi(Normalize(bare(input)))
	if err != nil || n < 1 || n > len(options) {
		return input
	}
	return options[n-1]
}
