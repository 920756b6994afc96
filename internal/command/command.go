package command

import (
	"errors"
	"fmt"
	"strings"
)

// ValueDelimiter разделяет элементы многозначной опции.
const ValueDelimiter = ','

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrDuplicateOption = errors.New("duplicate option")
	ErrMalformed       = errors.New("malformed command")
	ErrMissingOption   = errors.New("missing required option")
)

// Option — пара --name=value.
type Option struct {
	Name  string
	Value string
}

// Command — разобранная командная строка: ключевое слово и опции по порядку.
type Command struct {
	Keyword string
	Options []Option
}

// Value возвращает значение опции и признак ее наличия.
func (c Command) Value(name string) (string, bool) {
	for _, o := range c.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}

// Lookup возвращает указатель на значение или nil, если опции нет.
func (c Command) Lookup(name string) *string {
	v, ok := c.Value(name)
	if !ok {
		return nil
	}
	return &v
}

// Values возвращает элементы многозначной опции; nil, если опции нет.
func (c Command) Values(name string) []string {
	v, ok := c.Value(name)
	if !ok {
		return nil
	}
	return SplitValues(v)
}

// Require возвращает значение обязательной опции.
func (c Command) Require(name string) (string, error) {
	v, ok := c.Value(name)
	if !ok || v == "" {
		return "", fmt.Errorf("--%s: %w", name, ErrMissingOption)
	}
	return v, nil
}

// String кодирует команду в каноническую строку.
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Keyword)
	for _, o := range c.Options {
		sb.WriteString(" --")
		sb.WriteString(o.Name)
		sb.WriteByte('=')
		sb.WriteString(quote(o.Value))
	}
	return sb.String()
}

// Builder собирает командную строку.
type Builder struct {
	cmd Command
}

// NewBuilder начинает команду с ключевым словом.
func NewBuilder(keyword string) *Builder {
	return &Builder{cmd: Command{Keyword: keyword}}
}

// AddOption добавляет опцию, заменяя предыдущее значение с тем же именем.
func (b *Builder) AddOption(name, value string) *Builder {
	for i, o := range b.cmd.Options {
		if o.Name == name {
			b.cmd.Options[i].Value = value
			return b
		}
	}
	b.cmd.Options = append(b.cmd.Options, Option{Name: name, Value: value})
	return b
}

// AddValues добавляет многозначную опцию.
func (b *Builder) AddValues(name string, values []string) *Builder {
	return b.AddOption(name, JoinValues(values))
}

// Command возвращает копию собранной команды.
func (b *Builder) Command() Command {
	out := Command{Keyword: b.cmd.Keyword, Options: make([]Option, len(b.cmd.Options))}
	copy(out.Options, b.cmd.Options)
	return out
}

func (b *Builder) String() string { return b.cmd.String() }

// JoinValues склеивает значения через запятую, экранируя запятые и '\'.
func JoinValues(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(v, string(ValueDelimiter), `\`+string(ValueDelimiter))
	}
	return strings.Join(escaped, string(ValueDelimiter))
}

// SplitValues обращает JoinValues.
func SplitValues(s string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case ch == ValueDelimiter:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(out, cur.String())
}

func needsQuote(v string) bool {
	if v == "" {
		return true
	}
	return strings.ContainsAny(v, " \t\r\n\"\\'")
}

func quote(v string) string {
	if !needsQuote(v) {
		return v
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(v[i])
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(v[i])
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
