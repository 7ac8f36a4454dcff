// Package docker implements the runner.Runner interface using the Docker API.
// Stage commands run in containers on the host Docker daemon, with the
// stage working copy bind-mounted as the container workspace.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"buildpipe/apperrors"
	"buildpipe/runner"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// Runner implements runner.Runner using Docker.
type Runner struct {
	client       *client.Client
	defaultImage string
	workdir      string
	extraHosts   []string
	stopTimeout  time.Duration
	registryAuth string
	logger       *slog.Logger
}

var _ runner.Runner = (*Runner)(nil)

// New creates a Docker-backed runner from the given config.
func New(cfg Config) (*Runner, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	cfg = cfg.withDefaults()

	return &Runner{
		client:       dockerClient,
		defaultImage: cfg.DefaultImage,
		workdir:      cfg.Workdir,
		extraHosts:   cfg.ExtraHosts,
		stopTimeout:  cfg.StopTimeout,
		registryAuth: cfg.RegistryAuth,
		logger:       slog.With("component", "runner.docker"),
	}, nil
}

// Run executes the stage commands, one container per command, stopping at
// the first non-zero exit. A non-zero exit is reported via the Result;
// errors are reserved for daemon or image failures.
func (r *Runner) Run(ctx context.Context, spec runner.Spec) (*runner.Result, error) {
	imageName := spec.Image
	if imageName == "" {
		imageName = r.defaultImage
	}

	// Pull with a detached context so a caller timeout doesn't leave a
	// half-pulled image behind.
	pullCtx := context.WithoutCancel(ctx)
	if err := r.ensureImage(pullCtx, imageName, spec.Pull); err != nil {
		return nil, apperrors.Internal("docker.pullImage", err)
	}

	for i, command := range spec.Commands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		exitCode, err := r.runCommand(ctx, spec, imageName, i, command)
		if err != nil {
			return nil, err
		}
		if exitCode != 0 {
			r.logger.Debug("Stage command failed",
				"stage", spec.Stage,
				"command", i,
				"exitCode", exitCode,
			)
			return &runner.Result{ExitCode: exitCode, Failed: i}, nil
		}
	}

	return &runner.Result{ExitCode: 0, Failed: -1}, nil
}

func (r *Runner) runCommand(ctx context.Context, spec runner.Spec, imageName string, index int, command string) (int, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	containerConfig := &container.Config{
		Image:      imageName,
		Cmd:        []string{"/bin/sh", "-c", command},
		Env:        env,
		WorkingDir: r.workdir,
		Labels: map[string]string{
			"build.id":   spec.BuildID,
			"stage":      spec.Stage,
			"managed-by": "buildpipe",
		},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: spec.Dir,
				Target: r.workdir,
			},
		},
		ExtraHosts: r.extraHosts,
	}

	containerName := fmt.Sprintf("build-%s-%s-%d", spec.BuildID, spec.Stage, index)
	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return -1, apperrors.Internal("docker.createContainer", err)
	}
	defer r.removeContainer(context.WithoutCancel(ctx), resp.ID)

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, apperrors.Internal("docker.startContainer", err)
	}

	exitCode, err := r.waitForExit(ctx, resp.ID)
	if err != nil {
		return -1, apperrors.Internal("docker.waitContainer", err)
	}
	return exitCode, nil
}

func (r *Runner) waitForExit(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		if status.Error != nil {
			return int(status.StatusCode), fmt.Errorf("%s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	}
}

// ensureImage pulls the image unless it is already present. When force is
// set the pull always happens, refreshing mutable tags.
func (r *Runner) ensureImage(ctx context.Context, imageName string, force bool) error {
	if !force {
		if _, err := r.client.ImageInspect(ctx, imageName); err == nil {
			return nil
		}
	}

	reader, err := r.client.ImagePull(ctx, imageName, image.PullOptions{RegistryAuth: r.registryAuth})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *Runner) removeContainer(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	stopTimeout := int(r.stopTimeout.Seconds())
	_ = r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})
	_ = r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// Close releases the underlying Docker client.
func (r *Runner) Close() error {
	return r.client.Close()
}
