/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

var (
	reHeading = regexp.MustCompile(`^#+\s*(.*)$`)
	reVerb    = regexp.MustCompile(`^[a-z][a-z0-9\-]*$`)
	reOpt     = regexp.MustCompile(`^([a-z][a-z0-9_]*)=(.*)$`)
)

func fmtPos(line, col int) string {
	if col > 0 {
		return fmt.Sprintf("line %d:%d", line, col)
	}
	return fmt.Sprintf("line %d", line)
}

// Parse parses script text. Syntax:
//   - "# Title" sets the design title.
//   - Lines starting with ';' are comments.
//   - Other lines are "verb args... key=value... [: text]". Verbs are case-insensitive.
//   - A line indented by 2+ spaces continues the Text of the previous command.
//
// Blank lines end a continuation. Parsing continues after an error so all
// problems are reported at once.
func Parse(input string) (Script, []Error) {
	var (
		s    Script
		errs []Error
		last *Command
	)
	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if strings.HasPrefix(line, "  ") && last != nil {
			if cont := strings.TrimSpace(line); cont != "" {
				if last.Text == "" {
					last.Text = cont
				} else {
					last.Text += "\n" + cont
				}
			}
			continue
		}

		trim := strings.TrimSpace(line)
		if trim == "" {
			last = nil
			continue
		}
		if m := reHeading.FindStringSubmatch(trim); m != nil {
			s.Title = strings.TrimSpace(m[1])
			last = nil
			continue
		}
		if strings.HasPrefix(trim, ";") {
			last = nil
			continue
		}

		cmd, err := parseCommand(trim, lineNo)
		if err != nil {
			errs = append(errs, *err)
			last = nil
			continue
		}
		s.Commands = append(s.Commands, cmd)
		last = &s.Commands[len(s.Commands)-1]
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return s, errs
}

func parseCommand(line string, lineNo int) (Command, *Error) {
	head, text, hasText := strings.Cut(line, " : ")
	if !hasText && strings.HasSuffix(line, " :") {
		head, hasText = strings.TrimSuffix(line, " :"), true
	}
	fields, err := splitFields(head)
	if err != nil {
		return Command{}, &Error{Line: lineNo, Column: 1, Message: err.Error()}
	}
	if len(fields) == 0 {
		return Command{}, &Error{Line: lineNo, Column: 1, Message: "missing command"}
	}
	verb := strings.ToLower(fields[0])
	if !reVerb.MatchString(verb) {
		return Command{}, &Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("invalid command %q", fields[0])}
	}
	cmd := Command{Verb: verb, LineNo: lineNo}
	for _, f := range fields[1:] {
		if m := reOpt.FindStringSubmatch(f); m != nil {
			if cmd.Opts == nil {
				cmd.Opts = map[string]string{}
			}
			cmd.Opts[m[1]] = m[2]
			continue
		}
		cmd.Args = append(cmd.Args, f)
	}
	if hasText {
		cmd.Text = strings.TrimSpace(text)
	}
	return cmd, nil
}

// splitFields splits on whitespace and keeps double-quoted runs together.
func splitFields(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote bool
		have  bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quote = !quote
			have = true
		case !quote && (r == ' ' || r == '\t'):
			if have {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if quote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if have {
		out = append(out, cur.String())
	}
	return out, nil
}
