package session

import "strings"

// Command is one of the single-letter commands accepted at the prompt.
type Command int

const (
	CommandUpload Command = iota + 1
	CommandList
	CommandGet
	CommandDelete
	CommandExit
)

// Commands lists every command in menu order.
var Commands = []Command{CommandUpload, CommandList, CommandGet, CommandDelete, CommandExit}

// Key returns the input letter for the command.
func (c Command) Key() string {
	switch c {
	case CommandUpload:
		return "U"
	case CommandList:
		return "L"
	case CommandGet:
		return "G"
	case CommandDelete:
		return "D"
	case CommandExit:
		return "E"
	default:
		return ""
	}
}

func (c Command) String() string {
	switch c {
	case CommandUpload:
		return "upload"
	case CommandList:
		return "list"
	case CommandGet:
		return "get"
	case CommandDelete:
		return "delete"
	case CommandExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ParseCommand maps an input line to a command. Surrounding whitespace is
// ignored; matching is case-sensitive, so "u" is not a command.
func ParseCommand(line string) (Command, bool) {
	key := strings.TrimSpace(line)
	for _, c := range Commands {
		if c.Key() == key {
			return c, true
		}
	}
	return 0, false
}
