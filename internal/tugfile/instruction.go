package tugfile

import (
	"fmt"
	"strconv"
)

// Leading word of an instruction line.
type Keyword string

const (
	KeywordFrom       Keyword = "FROM"
	KeywordRun        Keyword = "RUN"
	KeywordCopy       Keyword = "COPY"
	KeywordAdd        Keyword = "ADD"
	KeywordCmd        Keyword = "CMD"
	KeywordWorkdir    Keyword = "WORKDIR"
	KeywordExpose     Keyword = "EXPOSE"
	KeywordEnv        Keyword = "ENV"
	KeywordEntrypoint Keyword = "ENTRYPOINT"
)

// One build step.
//
// The set of implementations is closed; see [Visitor].
type Instruction interface {
	Keyword() Keyword
	Accept(v Visitor) error
	String() string
}

// Dispatches on the concrete instruction type.
type Visitor interface {
	VisitFrom(From) error
	VisitRun(Run) error
	VisitCopy(Copy) error
	VisitAdd(Add) error
	VisitCmd(Cmd) error
	VisitWorkdir(Workdir) error
	VisitExpose(Expose) error
	VisitEnv(Env) error
	VisitEntrypoint(Entrypoint) error
}

// Selects the base image and starts a fresh build context.
type From struct {
	Image string // Image reference, e.g. "ubuntu:20.04".
}

// Runs a shell command in the current working directory.
type Run struct {
	Command string
}

// Copies a local file or directory into the image.
type Copy struct {
	Src  string // Path on the build host, relative to the build context.
	Dest string // Path in the image, relative to the working directory.
}

// Like [Copy], but also accepts URLs and unpacks local archives.
type Add struct {
	Src  string
	Dest string
}

// Records the image's default command.
type Cmd struct {
	Command string // Shell form or JSON array (exec form).
}

// Changes the working directory, creating it if needed.
type Workdir struct {
	Path string
}

// Records a port the container listens on.
type Expose struct {
	Port uint16
}

// Sets an environment variable for later instructions and the image.
type Env struct {
	Key   string
	Value string
}

// Records the image's entrypoint.
type Entrypoint struct {
	Command string // Shell form or JSON array (exec form).
}

func (From) Keyword() Keyword       { return KeywordFrom }
func (Run) Keyword() Keyword        { return KeywordRun }
func (Copy) Keyword() Keyword       { return KeywordCopy }
func (Add) Keyword() Keyword        { return KeywordAdd }
func (Cmd) Keyword() Keyword        { return KeywordCmd }
func (Workdir) Keyword() Keyword    { return KeywordWorkdir }
func (Expose) Keyword() Keyword     { return KeywordExpose }
func (Env) Keyword() Keyword        { return KeywordEnv }
func (Entrypoint) Keyword() Keyword { return KeywordEntrypoint }

func (i From) Accept(v Visitor) error       { return v.VisitFrom(i) }
func (i Run) Accept(v Visitor) error        { return v.VisitRun(i) }
func (i Copy) Accept(v Visitor) error       { return v.VisitCopy(i) }
func (i Add) Accept(v Visitor) error        { return v.VisitAdd(i) }
func (i Cmd) Accept(v Visitor) error        { return v.VisitCmd(i) }
func (i Workdir) Accept(v Visitor) error    { return v.VisitWorkdir(i) }
func (i Expose) Accept(v Visitor) error     { return v.VisitExpose(i) }
func (i Env) Accept(v Visitor) error        { return v.VisitEnv(i) }
func (i Entrypoint) Accept(v Visitor) error { return v.VisitEntrypoint(i) }

// String renders the instruction as a Tugfile line. Parsing the result with
// [ParseLine] yields an equal instruction.
func (i From) String() string       { return line(KeywordFrom, i.Image) }
func (i Run) String() string        { return line(KeywordRun, i.Command) }
func (i Copy) String() string       { return line(KeywordCopy, i.Src+" "+i.Dest) }
func (i Add) String() string        { return line(KeywordAdd, i.Src+" "+i.Dest) }
func (i Cmd) String() string        { return line(KeywordCmd, i.Command) }
func (i Workdir) String() string    { return line(KeywordWorkdir, i.Path) }
func (i Expose) String() string     { return line(KeywordExpose, strconv.Itoa(int(i.Port))) }
func (i Env) String() string        { return line(KeywordEnv, i.Key+"="+i.Value) }
func (i Entrypoint) String() string { return line(KeywordEntrypoint, i.Command) }

func line(k Keyword, payload string) string {
	return fmt.Sprintf("%s %s", k, payload)
}
