// Package containerrt implements the Container Orchestrator Adapter
// (C2): building sub-agent images, idempotently starting/stopping
// their containers by canonical name, and pruning unreferenced images.
package containerrt

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/dyluth/raid/internal/docker"
	"github.com/dyluth/raid/internal/profile"
)

// ErrNotFound is returned by operations on a container that no longer
// exists; stop/remove/logs treat it as success per spec.md §4.2.
type ErrNotFound struct{ Handle string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("container %s not found", e.Handle) }

// BuildFailed captures a failed image build along with its log output.
type BuildFailed struct {
	ImageTag string
	Log      string
	Err      error
}

func (e *BuildFailed) Error() string {
	return fmt.Sprintf("build failed for %s: %v", e.ImageTag, e.Err)
}
func (e *BuildFailed) Unwrap() error { return e.Err }

// StartFailed wraps a container start failure.
type StartFailed struct {
	Name string
	Err  error
}

func (e *StartFailed) Error() string { return fmt.Sprintf("start failed for %s: %v", e.Name, e.Err) }
func (e *StartFailed) Unwrap() error { return e.Err }

// Adapter implements C2 over the Docker Engine API.
type Adapter struct {
	cli *client.Client

	nameLocksMu sync.Mutex
	nameLocks   map[string]*sync.Mutex
}

// New wraps an existing Docker client (see internal/docker.NewClient).
func New(cli *client.Client) *Adapter {
	return &Adapter{cli: cli, nameLocks: make(map[string]*sync.Mutex)}
}

// lockFor serialises every operation on a given canonical container
// name (spec.md §4.2: "all operations are serialised per canonical
// name to prevent races between concurrent ensures").
func (a *Adapter) lockFor(name string) *sync.Mutex {
	a.nameLocksMu.Lock()
	defer a.nameLocksMu.Unlock()
	if l, ok := a.nameLocks[name]; ok {
		return l
	}
	l := &sync.Mutex{}
	a.nameLocks[name] = l
	return l
}

// EnsureImage builds profile's sub-agent image if no image labeled for
// this (name, version) exists yet, otherwise reuses it.
func (a *Adapter) EnsureImage(ctx context.Context, p *profile.Profile) (string, error) {
	tag := profile.ImageTag(p)

	if inspect, _, err := a.cli.ImageInspectWithRaw(ctx, tag); err == nil {
		return inspect.ID, nil
	}

	spec := profile.BuildContainerSpec(p)
	buildCtx, err := buildContext(spec)
	if err != nil {
		return "", fmt.Errorf("build context for %s: %w", tag, err)
	}

	resp, err := a.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:   []string{tag},
		Remove: true,
		Labels: spec.Labels,
	})
	if err != nil {
		return "", &BuildFailed{ImageTag: tag, Err: err}
	}
	defer resp.Body.Close()

	buildLog, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		slog.Warn("could not read build log", "component", "containerrt", "image_tag", tag, "error", readErr)
	}

	inspect, _, err := a.cli.ImageInspectWithRaw(ctx, tag)
	if err != nil {
		return "", &BuildFailed{ImageTag: tag, Log: string(buildLog), Err: err}
	}
	return inspect.ID, nil
}

// buildContext packages a synthesized Dockerfile + requirements.txt +
// profile.yaml into an in-memory tar stream for ImageBuild.
func buildContext(spec profile.ContainerSpec) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	files := map[string]string{
		"Dockerfile":       spec.Dockerfile,
		"requirements.txt": spec.Requirements,
	}
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// EnsureRunning implements spec.md §4.2's idempotent ensure: reuse a
// running container with the canonical name, recreate a stopped one,
// or create fresh.
func (a *Adapter) EnsureRunning(ctx context.Context, p *profile.Profile, env []string) (string, error) {
	name := docker.SubAgentContainerName(p.Name, "")
	lock := a.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := a.findByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("inspect existing container %s: %w", name, err)
	}

	if existing != nil {
		if existing.State == "running" {
			return existing.ID, nil
		}
		if err := a.cli.ContainerRemove(ctx, existing.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			return "", fmt.Errorf("remove stopped container %s: %w", name, err)
		}
	}

	imageTag := profile.ImageTag(p)
	labels := docker.BuildLabels(p.Name, "", p.Persistent())

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image:  imageTag,
		Env:    env,
		Labels: labels,
	}, &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}, nil, nil, name)
	if err != nil {
		return "", &StartFailed{Name: name, Err: err}
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		a.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return "", &StartFailed{Name: name, Err: err}
	}

	return resp.ID, nil
}

func (a *Adapter) findByName(ctx context.Context, name string) (*types.Container, error) {
	f := filters.NewArgs()
	f.Add("name", "^/"+name+"$")
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true, Filters: f})
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, nil
	}
	return &containers[0], nil
}

// Stop stops a container handle. Missing-container is treated as
// success (spec.md §4.2).
func (a *Adapter) Stop(ctx context.Context, handle string) error {
	timeout := 10
	if err := a.cli.ContainerStop(ctx, handle, container.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop %s: %w", handle, err)
	}
	return nil
}

// Remove removes a container handle. Missing-container is success.
func (a *Adapter) Remove(ctx context.Context, handle string) error {
	if err := a.cli.ContainerRemove(ctx, handle, types.ContainerRemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove %s: %w", handle, err)
	}
	return nil
}

// IsRunning reports whether the container is currently running. A
// missing container reports false rather than erroring.
func (a *Adapter) IsRunning(ctx context.Context, handle string) bool {
	inspect, err := a.cli.ContainerInspect(ctx, handle)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Running
}

// Logs returns the tail of a container's combined stdout/stderr.
func (a *Adapter) Logs(ctx context.Context, handle string, tailN int) (string, error) {
	reader, err := a.cli.ContainerLogs(ctx, handle, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", tailN),
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("logs %s: %w", handle, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read logs %s: %w", handle, err)
	}
	return string(data), nil
}

// PruneUnusedImages removes dangling images, then keeps the newest
// keepN labeled raid images not referenced by any live container,
// deleting the rest. Image-in-use errors are logged and skipped
// (spec.md §4.2).
func (a *Adapter) PruneUnusedImages(ctx context.Context, keepN int) error {
	danglingFilters := filters.NewArgs()
	danglingFilters.Add("dangling", "true")
	if _, err := a.cli.ImagesPrune(ctx, danglingFilters); err != nil {
		slog.Warn("dangling image prune failed", "component", "containerrt", "error", err)
	}

	labelFilters := filters.NewArgs()
	labelFilters.Add("label", docker.AgentImageLabel+"=true")
	images, err := a.cli.ImageList(ctx, types.ImageListOptions{Filters: labelFilters})
	if err != nil {
		return fmt.Errorf("list raid images: %w", err)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Created > images[j].Created })

	inUse, err := a.imagesInUse(ctx)
	if err != nil {
		return fmt.Errorf("list images in use: %w", err)
	}

	kept := 0
	for _, img := range images {
		if inUse[img.ID] {
			continue
		}
		if kept < keepN {
			kept++
			continue
		}
		if _, err := a.cli.ImageRemove(ctx, img.ID, types.ImageRemoveOptions{}); err != nil {
			slog.Warn("skip image still in use or otherwise undeletable", "component", "containerrt", "image_id", img.ID, "error", err)
		}
	}
	return nil
}

func (a *Adapter) imagesInUse(ctx context.Context) (map[string]bool, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, err
	}
	inUse := make(map[string]bool, len(containers))
	for _, c := range containers {
		inUse[c.ImageID] = true
	}
	return inUse, nil
}
