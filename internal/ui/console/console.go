package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Host talks to the user on a terminal. Progress is redrawn in place on one
// line; log lines are printed below it.
type Host struct {
	in  *bufio.Reader
	out io.Writer

	fd       int
	terminal bool

	inProgress bool
}

func New(in io.Reader, out io.Writer) *Host {
	h := &Host{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		h.fd = int(f.Fd())
		h.terminal = true
	}

	return h
}

func (h *Host) ReportProgress(label string, fraction float64) {
	_, _ = fmt.Fprintf(h.out, "\r%-20s %3.0f%%", label, fraction*100)
	h.inProgress = true

	if fraction >= 1 {
		h.endProgress()
	}
}

func (h *Host) AppendLog(line string) {
	h.endProgress()
	_, _ = fmt.Fprintln(h.out, line)
}

func (h *Host) PromptPassword() (string, bool) {
	h.endProgress()
	_, _ = fmt.Fprint(h.out, "Archive password: ")

	if h.terminal {
		b, err := term.ReadPassword(h.fd)
		_, _ = fmt.Fprintln(h.out)
		if err != nil || len(b) == 0 {
			return "", false
		}
		return string(b), true
	}

	return h.readLine()
}

func (h *Host) SelectDirectory() (string, bool) {
	return h.selectPath("Folder to back up: ", true)
}

func (h *Host) SelectFile() (string, bool) {
	return h.selectPath("Client secret file: ", false)
}

func (h *Host) selectPath(prompt string, dir bool) (string, bool) {
	h.endProgress()
	_, _ = fmt.Fprint(h.out, prompt)

	line, ok := h.readLine()
	if !ok {
		return "", false
	}

	path, err := expandHome(line)
	if err != nil {
		return "", false
	}

	kind := "file"
	if dir {
		kind = "folder"
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() != dir {
		_, _ = fmt.Fprintf(h.out, "%s is not a %s\n", path, kind)
		return "", false
	}

	return path, true
}

func (h *Host) readLine() (string, bool) {
	line, err := h.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false
	}

	line = strings.TrimSpace(line)
	return line, line != ""
}

func (h *Host) endProgress() {
	if h.inProgress {
		_, _ = fmt.Fprintln(h.out)
		h.inProgress = false
	}
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return filepath.Abs(p)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
