package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/codex-k8s/kindctl/internal/config"
	"github.com/codex-k8s/kindctl/internal/docker"
	"github.com/codex-k8s/kindctl/internal/steps"
)

// BuildParams configures image builds and the registry they are pushed to.
type BuildParams struct {
	RegistryHost string
	RegistryPort int
	ForceRebuild bool
}

func (e *Env) buildAndPushImages(ctx context.Context, p BuildParams) ([]steps.Output, error) {
	imgs, err := e.catalogue(ctx)
	if err != nil {
		return nil, err
	}
	root, err := e.root(ctx)
	if err != nil {
		return nil, err
	}

	registry := registryAddress(p.RegistryHost, p.RegistryPort)
	buildable := imgs.Buildable()
	if len(buildable) == 0 {
		return nil, fmt.Errorf("image catalogue %s has no named images to build", e.Config.ImagesPath())
	}

	e.Logger.Info("building images", "count", len(buildable), "registry", registry, "force_rebuild", p.ForceRebuild)
	for _, img := range buildable {
		if err := e.buildImage(ctx, root, img, p.ForceRebuild); err != nil {
			return nil, err
		}
	}

	for _, img := range buildable {
		target := docker.RegistryTaggedName(img.Name, registry)
		tagged, err := e.Docker.ImageExists(ctx, target)
		if err != nil {
			return nil, err
		}
		if !tagged || p.ForceRebuild {
			if err := e.Docker.TagImage(ctx, img.Name, target); err != nil {
				return nil, err
			}
		}
		e.Logger.Info("pushing image", "image", target)
		if err := e.Docker.PushImage(ctx, target); err != nil {
			return nil, err
		}
	}

	for _, img := range imgs.Data() {
		if err := e.extractArtifact(ctx, img); err != nil {
			e.Logger.Warn("artifact extraction failed", "image", img.Name, "error", err)
		}
	}

	e.Logger.Info("images built and pushed", "count", len(buildable), "registry", registry)
	return nil, nil
}

func (e *Env) buildImage(ctx context.Context, root string, img config.Image, force bool) error {
	logger := e.Logger.With("image", img.Name, "dockerfile", img.Dockerfile)

	exists, err := e.Docker.ImageExists(ctx, img.Name)
	if err != nil {
		return err
	}
	if exists && !force {
		logger.Info("image already exists, skipping build")
		return nil
	}
	if exists {
		logger.Info("removing existing image before rebuild")
		if err := e.Docker.RemoveImage(ctx, img.Name); err != nil {
			return err
		}
	}
	logger.Info("building image")
	return e.Docker.BuildImage(ctx, root, img.Dockerfile, img.Name)
}

// extractArtifact copies a data image's artifact into every destination under the project root.
func (e *Env) extractArtifact(ctx context.Context, img config.Image) error {
	if img.Purpose != config.PurposeData || img.Artifact == nil {
		return nil
	}
	if err := e.Docker.CreateContainer(ctx, img.Name, img.Name); err != nil {
		return err
	}
	defer func() {
		if err := e.Docker.RemoveContainer(context.WithoutCancel(ctx), img.Name); err != nil {
			e.Logger.Warn("failed to remove artifact container", "container", img.Name, "error", err)
		}
	}()

	for _, dest := range img.Artifact.Dest {
		target := e.Config.Path(dest)
		if err := e.Docker.CopyFromContainer(ctx, img.Name, img.Artifact.Path, target); err != nil {
			return err
		}
		e.Logger.Info("artifact extracted", "image", img.Name, "path", img.Artifact.Path, "dest", target)
	}
	return nil
}

// removeImages deletes the registry-tagged and local reference of every named image.
func (e *Env) removeImages(ctx context.Context, registryHost string, registryPort int) error {
	imgs, err := e.catalogue(ctx)
	if err != nil {
		return err
	}
	registry := registryAddress(registryHost, registryPort)

	var errs []error
	removed := 0
	for _, img := range imgs.Buildable() {
		for _, ref := range []string{docker.RegistryTaggedName(img.Name, registry), img.Name} {
			exists, err := e.Docker.ImageExists(ctx, ref)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !exists {
				continue
			}
			if err := e.Docker.RemoveImage(ctx, ref); err != nil {
				errs = append(errs, err)
				continue
			}
			e.Logger.Info("image removed", "image", ref)
			removed++
		}
	}

	if removed == 0 {
		e.Logger.Info("no images found to remove")
	} else {
		e.Logger.Info("images removed", "count", removed)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove %d images: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
