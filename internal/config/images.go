package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DockerfilePattern matches the Dockerfiles every catalogue must cover.
const DockerfilePattern = "Dockerfile*"

// Purpose classifies what an image is built for.
type Purpose string

const (
	// PurposeSetup images carry toolchains used to build other images.
	PurposeSetup Purpose = "setup"
	// PurposeApplication images run services.
	PurposeApplication Purpose = "application"
	// PurposeData images only hold build artifacts that get copied out.
	PurposeData Purpose = "data"
)

// Artifact locates the payload of a data image.
type Artifact struct {
	// Path inside the image.
	Path string `yaml:"path"`
	// Dest lists paths relative to the project root to copy the artifact to.
	Dest []string `yaml:"dest"`
}

// Image is one entry of the image catalogue. An image without a name is
// managed by docker compose and never built here.
type Image struct {
	Name         string    `yaml:"name,omitempty"`
	Dockerfile   string    `yaml:"dockerfile"`
	Dependencies []string  `yaml:"dependencies,omitempty"`
	Purpose      Purpose   `yaml:"purpose"`
	Artifact     *Artifact `yaml:"artifact,omitempty"`
}

// Images is the ordered image catalogue.
type Images struct {
	Images []Image `yaml:"images"`
}

// LoadImages reads and validates the catalogue at path. Comprehensiveness is
// checked against root when it is not empty.
func LoadImages(path, root string) (*Images, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image catalogue %q: %w", path, err)
	}
	imgs, err := ParseImages(raw)
	if err != nil {
		return nil, fmt.Errorf("image catalogue %q: %w", path, err)
	}
	if root != "" {
		if err := imgs.CheckComprehensiveness(root); err != nil {
			return nil, fmt.Errorf("image catalogue %q: %w", path, err)
		}
	}
	return imgs, nil
}

// ParseImages decodes a catalogue, rejecting unknown fields, and validates entries and ordering.
func ParseImages(raw []byte) (*Images, error) {
	var imgs Images
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&imgs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := imgs.Validate(); err != nil {
		return nil, err
	}
	if err := imgs.CheckOrderedness(); err != nil {
		return nil, err
	}
	return &imgs, nil
}

// Validate checks every entry on its own.
func (c *Images) Validate() error {
	for i, img := range c.Images {
		label := img.Name
		if label == "" {
			label = img.Dockerfile
		}
		if strings.TrimSpace(img.Dockerfile) == "" {
			return fmt.Errorf("image #%d (%s): dockerfile is required", i+1, label)
		}
		switch img.Purpose {
		case PurposeSetup, PurposeApplication:
			if img.Artifact != nil {
				return fmt.Errorf("image %s: artifact is only valid for %s images", label, PurposeData)
			}
		case PurposeData:
			if img.Name == "" {
				return fmt.Errorf("image with dockerfile %s is a data image but has no name", img.Dockerfile)
			}
			if img.Artifact == nil || img.Artifact.Path == "" || len(img.Artifact.Dest) == 0 {
				return fmt.Errorf("image %s: data images need artifact.path and at least one artifact.dest", label)
			}
		default:
			return fmt.Errorf("image %s: unknown purpose %q (expected setup, application or data)", label, img.Purpose)
		}
	}
	return nil
}

// CheckOrderedness verifies that every dependency is declared before its first use.
func (c *Images) CheckOrderedness() error {
	defined := make(map[string]bool, len(c.Images))
	for _, img := range c.Images {
		for _, dep := range img.Dependencies {
			if !defined[dep] {
				label := img.Name
				if label == "" {
					label = img.Dockerfile
				}
				return fmt.Errorf("image %s depends on %s which is not defined before it", label, dep)
			}
		}
		if img.Name != "" {
			defined[img.Name] = true
		}
	}
	return nil
}

// CheckComprehensiveness verifies that the Dockerfiles at root and the catalogue match exactly.
func (c *Images) CheckComprehensiveness(root string) error {
	actual, err := doublestar.Glob(os.DirFS(root), DockerfilePattern)
	if err != nil {
		return fmt.Errorf("list Dockerfiles in %s: %w", root, err)
	}

	known := make(map[string]bool, len(c.Images))
	for _, img := range c.Images {
		known[img.Dockerfile] = true
	}
	found := make(map[string]bool, len(actual))
	var missing, extra []string
	for _, f := range actual {
		found[f] = true
		if !known[f] {
			missing = append(missing, f)
		}
	}
	for f := range known {
		if !found[f] {
			extra = append(extra, f)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)
	var msgs []string
	if len(missing) > 0 {
		msgs = append(msgs, "missing Dockerfiles in catalogue: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		msgs = append(msgs, "catalogue lists absent Dockerfiles: "+strings.Join(extra, ", "))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Buildable returns the named images in catalogue order.
func (c *Images) Buildable() []Image {
	var out []Image
	for _, img := range c.Images {
		if img.Name != "" {
			out = append(out, img)
		}
	}
	return out
}

// Data returns the data images in catalogue order.
func (c *Images) Data() []Image {
	var out []Image
	for _, img := range c.Images {
		if img.Purpose == PurposeData {
			out = append(out, img)
		}
	}
	return out
}
