package command

import (
	"fmt"
	"strings"
)

// Parse разбирает строку вида `<keyword> --opt=value ...`.
// Голая опция `--flag` получает значение "true".
func Parse(line string) (Command, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{}, ErrEmptyCommand
	}

	var (
		cmd     Command
		keyword []string
		seen    = make(map[string]struct{})
	)
	for i, tok := range tokens {
		if !tok.option {
			if len(cmd.Options) > 0 || tok.quoted {
				return Command{}, fmt.Errorf("unexpected argument %q: %w", tok.text, ErrMalformed)
			}
			keyword = append(keyword, tok.text)
			continue
		}
		if len(keyword) == 0 {
			return Command{}, fmt.Errorf("option before keyword at token %d: %w", i, ErrMalformed)
		}
		name, value, hasValue := strings.Cut(tok.text, "=")
		if name == "" {
			return Command{}, fmt.Errorf("empty option name: %w", ErrMalformed)
		}
		if !hasValue {
			value = "true"
		}
		if _, dup := seen[name]; dup {
			return Command{}, fmt.Errorf("--%s: %w", name, ErrDuplicateOption)
		}
		seen[name] = struct{}{}
		cmd.Options = append(cmd.Options, Option{Name: name, Value: value})
	}
	if len(keyword) == 0 {
		return Command{}, ErrEmptyCommand
	}
	cmd.Keyword = strings.Join(keyword, " ")
	return cmd, nil
}

type token struct {
	text   string
	option bool
	quoted bool
}

// tokenize режет строку по пробелам с учетом кавычек и '\'-экранирования.
// Для опций имя идет до '=', кавычки допустимы только в значении.
func tokenize(line string) ([]token, error) {
	var (
		out     []token
		cur     strings.Builder
		inToken bool
		inQuote bool
		lead    = -1
	)
	flush := func() {
		if !inToken {
			return
		}
		text := cur.String()
		tok := token{text: text, quoted: lead >= 0}
		// "--" должен стоять вне кавычек, иначе это обычный аргумент.
		if strings.HasPrefix(text, "--") && (lead < 0 || lead >= 2) {
			tok.option = true
			tok.text = text[2:]
		}
		out = append(out, tok)
		cur.Reset()
		inToken, lead = false, -1
	}

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote && ch == '\\':
			if i+1 >= len(line) {
				return nil, fmt.Errorf("dangling escape: %w", ErrMalformed)
			}
			i++
			switch line[i] {
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			case 't':
				cur.WriteByte('\t')
			default:
				cur.WriteByte(line[i])
			}
		case inQuote && ch == '"':
			inQuote = false
		case inQuote:
			cur.WriteByte(ch)
		case ch == '"':
			if lead < 0 {
				lead = cur.Len()
			}
			inQuote, inToken = true, true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			inToken = true
			cur.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote: %w", ErrMalformed)
	}
	flush()
	return out, nil
}
