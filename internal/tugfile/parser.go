package tugfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"mvdan.cc/sh/v3/syntax"
)

// Builds an instruction from the trimmed text after its keyword.
type payloadParser func(payload string) (Instruction, error)

var parsers = map[Keyword]payloadParser{
	KeywordFrom:       func(p string) (Instruction, error) { return From{Image: p}, nil },
	KeywordRun:        func(p string) (Instruction, error) { return Run{Command: p}, nil },
	KeywordCmd:        func(p string) (Instruction, error) { return Cmd{Command: p}, nil },
	KeywordWorkdir:    func(p string) (Instruction, error) { return Workdir{Path: p}, nil },
	KeywordEntrypoint: func(p string) (Instruction, error) { return Entrypoint{Command: p}, nil },
	KeywordCopy:       parseCopy,
	KeywordAdd:        parseAdd,
	KeywordExpose:     parseExpose,
	KeywordEnv:        parseEnv,
}

// Parses a single line.
//
// Returns false for blank lines, unknown keywords and malformed payloads.
func ParseLine(line string) (Instruction, bool) {
	inst, err := parseLine(line)
	return inst, err == nil
}

// Parses a whole Tugfile, keeping instructions in file order.
//
// Lines that do not parse are dropped without notice. Use [ParseStrict] when
// they should be reported.
func Parse(text string) []Instruction {
	var out []Instruction
	for _, l := range strings.Split(text, "\n") {
		if inst, ok := ParseLine(l); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Parses a whole Tugfile and reports every line that is not blank, not a
// "#" comment, and not a valid instruction. RUN commands must also parse as
// POSIX shell.
//
// The returned error joins one [*LineError] per rejected line. Instructions
// from valid lines are returned either way.
func ParseStrict(text string) ([]Instruction, error) {
	var out []Instruction
	var errs []error

	for i, l := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		inst, err := parseLine(trimmed)
		if err == nil {
			err = validate(inst)
		}
		if err != nil {
			errs = append(errs, &LineError{Line: i + 1, Text: trimmed, Err: err})
			continue
		}

		out = append(out, inst)
	}

	return out, errors.Join(errs...)
}

func parseLine(line string) (Instruction, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, ErrMissingPayload
	}

	word, payload := trimmed, ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		word, payload = trimmed[:i], strings.TrimSpace(trimmed[i:])
	}

	parse, ok := parsers[Keyword(word)]
	if !ok {
		return nil, ErrUnknownInstruction
	}
	if payload == "" {
		return nil, ErrMissingPayload
	}

	return parse(payload)
}

// Exactly two whitespace-separated tokens.
func parsePair(payload string) (string, string, error) {
	parts := strings.Fields(payload)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected source and destination, got %d fields", ErrMalformed, len(parts))
	}
	return parts[0], parts[1], nil
}

func parseCopy(payload string) (Instruction, error) {
	src, dest, err := parsePair(payload)
	if err != nil {
		return nil, err
	}
	return Copy{Src: src, Dest: dest}, nil
}

func parseAdd(payload string) (Instruction, error) {
	src, dest, err := parsePair(payload)
	if err != nil {
		return nil, err
	}
	return Add{Src: src, Dest: dest}, nil
}

func parseExpose(payload string) (Instruction, error) {
	port, err := strconv.ParseUint(payload, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q", ErrMalformed, payload)
	}
	return Expose{Port: uint16(port)}, nil
}

// Splits on the first "=" and trims both sides.
func parseEnv(payload string) (Instruction, error) {
	key, value, ok := strings.Cut(payload, "=")
	if !ok {
		return nil, fmt.Errorf("%w: expected KEY=VALUE", ErrMalformed)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty variable name", ErrMalformed)
	}

	return Env{Key: key, Value: strings.TrimSpace(value)}, nil
}

// Checks that go beyond syntax of the instruction line itself.
func validate(inst Instruction) error {
	run, ok := inst.(Run)
	if !ok {
		return nil
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(run.Command), ""); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShell, err)
	}
	return nil
}
