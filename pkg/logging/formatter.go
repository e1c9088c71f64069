package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

type ColoredJSONFormatter struct {
	// Include timestamp in the output
	TimestampFormat string
	// Customize field sorting
	SortingFunc func([]string) []string
	// Disable colors when not in terminal
	DisableColors bool
}

func NewColoredJSONFormatter() *ColoredJSONFormatter {
	return &ColoredJSONFormatter{
		TimestampFormat: time.RFC3339,
		SortingFunc:     defaultFieldSorting,
	}
}

func (f *ColoredJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields)
	for k, v := range entry.Data {
		data[k] = v
	}

	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	data["time"] = entry.Time.Format(f.TimestampFormat)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	if f.SortingFunc != nil {
		keys = f.SortingFunc(keys)
	} else {
		sort.Strings(keys)
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	levelColor := f.colorFor(entry)
	timeColor := f.paint(color.FgYellow)
	valueColor := f.paint(color.FgWhite)

	b.WriteString(timeColor.Sprintf("%s", data["time"]))
	b.WriteByte(' ')

	label := strings.ToUpper(data["level"].(string))
	if isSuccess(entry) {
		label = "SUCCESS"
	}
	b.WriteString(levelColor.Sprintf("%-7s", label))
	b.WriteByte(' ')

	if msg, ok := data["msg"].(string); ok {
		b.WriteString(levelColor.Sprintf("%s", msg))
	}
	b.WriteByte(' ')

	for _, k := range keys {
		if k == "time" || k == "level" || k == "msg" || k == OutcomeField {
			continue
		}

		fieldColor := f.paint(color.FgCyan)
		if isImportantField(k) {
			fieldColor = f.paint(color.FgGreen)
		}

		b.WriteString(fieldColor.Sprintf("%s=", k))
		b.WriteString(valueColor.Sprint(formatValue(data[k])))
		b.WriteByte(' ')
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case *big.Int:
		if v == nil {
			return "null"
		}
		return v.String()
	case fmt.Stringer:
		return fmt.Sprintf("%q", v.String())
	default:
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	}
}

func (f *ColoredJSONFormatter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if f.DisableColors {
		c.DisableColor()
	}
	return c
}

func (f *ColoredJSONFormatter) colorFor(entry *logrus.Entry) *color.Color {
	if isSuccess(entry) {
		return f.paint(color.FgGreen, color.Bold)
	}
	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return f.paint(color.FgBlue)
	case logrus.InfoLevel:
		return f.paint(color.FgWhite)
	case logrus.WarnLevel:
		return f.paint(color.FgYellow)
	case logrus.ErrorLevel:
		return f.paint(color.FgRed)
	case logrus.FatalLevel, logrus.PanicLevel:
		return f.paint(color.FgRed, color.Bold)
	default:
		return f.paint(color.FgWhite)
	}
}

func isSuccess(entry *logrus.Entry) bool {
	outcome, ok := entry.Data[OutcomeField].(string)
	return ok && outcome == outcomeSuccess
}

func isImportantField(field string) bool {
	important := map[string]bool{
		"tx_hash":      true,
		"wallet":       true,
		"variant":      true,
		"explorer_url": true,
		"error":        true,
	}
	return important[field]
}

func defaultFieldSorting(keys []string) []string {
	priorityFields := map[string]int{
		"time":         1,
		"level":        2,
		"msg":          3,
		"wallet":       4,
		"unit":         5,
		"variant":      6,
		"tx_hash":      7,
		"explorer_url": 8,
		"error":        9,
	}

	sort.Slice(keys, func(i, j int) bool {
		iPriority := priorityFields[keys[i]]
		jPriority := priorityFields[keys[j]]
		if iPriority != 0 && jPriority != 0 {
			return iPriority < jPriority
		}
		if iPriority != 0 {
			return true
		}
		if jPriority != 0 {
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}
