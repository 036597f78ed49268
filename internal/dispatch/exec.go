package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// ExecLauncher starts the worker binary as a separate process. The job id is
// passed through the environment; the child reads its inputs back out of
// object storage, so nothing else crosses the process boundary.
type ExecLauncher struct {
	bin    string
	logger *slog.Logger
}

// NewExecLauncher creates a launcher that spawns bin for each job.
func NewExecLauncher(bin string) *ExecLauncher {
	return &ExecLauncher{bin: bin, logger: slog.Default()}
}

func (l *ExecLauncher) Launch(_ context.Context, spec JobSpec) (string, error) {
	// Deliberately not CommandContext: the worker must outlive the admission
	// request that launched it.
	cmd := exec.Command(l.bin)
	cmd.Env = append(os.Environ(), "JOB_ID="+spec.JobID)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: starting %s: %v", ErrDispatchFailed, l.bin, err)
	}

	pid := cmd.Process.Pid
	l.logger.Info("worker process started", "job_id", spec.JobID, "pid", pid, "images", len(spec.InputKeys))

	// Reap the child when it exits so it never lingers as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			l.logger.Error("worker process exited with error", "job_id", spec.JobID, "pid", pid, "error", err)
		}
	}()

	return fmt.Sprintf("proc-%d", pid), nil
}

var _ Launcher = (*ExecLauncher)(nil)
