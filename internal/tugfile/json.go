package tugfile

import (
	"encoding/json"
	"fmt"
)

// An ordered instruction sequence with a JSON encoding.
//
// Each instruction is encoded as a flat record tagged by keyword:
//
//	[{"kind":"FROM","value":"alpine"},{"kind":"COPY","src":".","dest":"/app"}]
type List []Instruction

type record struct {
	Kind  Keyword `json:"kind"`
	Value string  `json:"value,omitempty"`
	Src   string  `json:"src,omitempty"`
	Dest  string  `json:"dest,omitempty"`
	Key   string  `json:"key,omitempty"`
	Port  *uint16 `json:"port,omitempty"`
}

// Fills a record from an instruction.
type encoder struct {
	rec record
}

func (e *encoder) VisitFrom(i From) error       { e.rec.Value = i.Image; return nil }
func (e *encoder) VisitRun(i Run) error         { e.rec.Value = i.Command; return nil }
func (e *encoder) VisitCmd(i Cmd) error         { e.rec.Value = i.Command; return nil }
func (e *encoder) VisitWorkdir(i Workdir) error { e.rec.Value = i.Path; return nil }
func (e *encoder) VisitEntrypoint(i Entrypoint) error {
	e.rec.Value = i.Command
	return nil
}

func (e *encoder) VisitCopy(i Copy) error {
	e.rec.Src, e.rec.Dest = i.Src, i.Dest
	return nil
}

func (e *encoder) VisitAdd(i Add) error {
	e.rec.Src, e.rec.Dest = i.Src, i.Dest
	return nil
}

func (e *encoder) VisitExpose(i Expose) error {
	port := i.Port
	e.rec.Port = &port
	return nil
}

func (e *encoder) VisitEnv(i Env) error {
	e.rec.Key, e.rec.Value = i.Key, i.Value
	return nil
}

func (l List) MarshalJSON() ([]byte, error) {
	records := make([]record, 0, len(l))
	for _, inst := range l {
		enc := &encoder{rec: record{Kind: inst.Keyword()}}
		if err := inst.Accept(enc); err != nil {
			return nil, err
		}
		records = append(records, enc.rec)
	}
	return json.Marshal(records)
}

func (l *List) UnmarshalJSON(data []byte) error {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	out := make(List, 0, len(records))
	for i, r := range records {
		inst, err := r.instruction()
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i+1, err)
		}
		out = append(out, inst)
	}

	*l = out
	return nil
}

func (r record) instruction() (Instruction, error) {
	switch r.Kind {
	case KeywordFrom:
		return From{Image: r.Value}, nil
	case KeywordRun:
		return Run{Command: r.Value}, nil
	case KeywordCopy:
		return Copy{Src: r.Src, Dest: r.Dest}, nil
	case KeywordAdd:
		return Add{Src: r.Src, Dest: r.Dest}, nil
	case KeywordCmd:
		return Cmd{Command: r.Value}, nil
	case KeywordWorkdir:
		return Workdir{Path: r.Value}, nil
	case KeywordEntrypoint:
		return Entrypoint{Command: r.Value}, nil
	case KeywordEnv:
		if r.Key == "" {
			return nil, fmt.Errorf("%w: ENV without key", ErrMalformed)
		}
		return Env{Key: r.Key, Value: r.Value}, nil
	case KeywordExpose:
		if r.Port == nil {
			return nil, fmt.Errorf("%w: EXPOSE without port", ErrMalformed)
		}
		return Expose{Port: *r.Port}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, r.Kind)
	}
}
