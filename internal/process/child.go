// Package process starts, supervises and stops the child processes: the
// long-running listener and the short-lived handshake helper.
package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Child is a handle to a spawned handshake process: line-oriented output
// and error streams, a raw input stream for secrets, and termination.
type Child interface {
	// WriteLine writes one newline-terminated line to the child's stdin.
	WriteLine(line string) error
	// Stdout and Stderr yield output lines; the channels are closed when
	// the respective stream ends.
	Stdout() <-chan string
	Stderr() <-chan string
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Kill forcibly terminates the process. Safe to call more than once.
	Kill()
}

// Spawner launches handshake children. The concrete implementation is the
// Manager; tests substitute scripted doubles.
type Spawner interface {
	Spawn(env map[string]string) (Child, error)
}

type execChild struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   chan string
	stderr   chan string
	done     chan struct{}
	killOnce sync.Once
}

func startChild(bin string, args []string, env map[string]string) (*execChild, error) {
	cmd := exec.Command(bin, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	c := &execChild{
		cmd:    cmd,
		stdin:  stdin,
		stdout: make(chan string, 16),
		stderr: make(chan string, 16),
		done:   make(chan struct{}),
	}
	go pumpLines(stdout, c.stdout)
	go pumpLines(stderr, c.stderr)
	go func() {
		_ = cmd.Wait()
		close(c.done)
	}()
	return c, nil
}

func pumpLines(r io.Reader, out chan<- string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
	close(out)
}

func (c *execChild) WriteLine(line string) error {
	_, err := io.WriteString(c.stdin, line+"\n")
	return err
}

func (c *execChild) Stdout() <-chan string { return c.stdout }
func (c *execChild) Stderr() <-chan string { return c.stderr }
func (c *execChild) Done() <-chan struct{} { return c.done }

func (c *execChild) Kill() {
	c.killOnce.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	})
}
