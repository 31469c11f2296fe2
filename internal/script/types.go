/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package script parses and runs edit scripts: line-based command files that
// drive an editing session without a UI.
package script

// Script is a parsed edit script.
type Script struct {
	// Title comes from a "# heading" line; the last heading wins.
	Title    string
	Commands []Command
}

// Command is one script line. Positional arguments go to Args, key=value
// pairs to Opts and everything after the first " : " to Text. Indented
// continuation lines are appended to Text separated by newlines.
//
//	shape rectangle 0 0 200 100 fill=#ff0000 as=header
//	text 20 40 size=48 : Welcome
//	  to the app
//	select header
//	align left
//	key ctrl+d
type Command struct {
	Verb   string
	Args   []string
	Opts   map[string]string
	Text   string
	LineNo int // 1-based line number in the source
}

// Opt returns the option value for key, or def.
func (c Command) Opt(key, def string) string {
	if v, ok := c.Opts[key]; ok {
		return v
	}
	return def
}

// Error represents a parse or run error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string {
	return fmtPos(e.Line, e.Column) + ": " + e.Message
}
