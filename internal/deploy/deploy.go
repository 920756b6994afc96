package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrDeployDirMissing возвращается, если каталог развертывания не существует.
var ErrDeployDirMissing = errors.New("deploy directory does not exist")

// Artifact описывает загруженный jar-архив.
type Artifact struct {
	Name          string
	CanonicalPath string
	Version       int
}

// Lister перечисляет развернутые артефакты участника.
type Lister interface {
	ListDeployed() ([]Artifact, error)
}

var versionedJar = regexp.MustCompile(`^(.+)\.v(\d+)\.jar$`)

// Dir реализует Lister поверх каталога с jar-файлами.
type Dir struct {
	Path string
}

// ListDeployed возвращает последнюю версию каждого jar, по имени.
// Пустой Path означает, что развертывание не настроено.
func (d Dir) ListDeployed() ([]Artifact, error) {
	if d.Path == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", d.Path, ErrDeployDirMissing)
		}
		return nil, fmt.Errorf("read deploy dir: %w", err)
	}

	latest := make(map[string]Artifact)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jar") {
			continue
		}
		name, version := parseJarName(e.Name())
		if cur, ok := latest[name]; ok && cur.Version >= version {
			continue
		}
		path, err := canonical(filepath.Join(d.Path, e.Name()))
		if err != nil {
			return nil, err
		}
		latest[name] = Artifact{Name: name, CanonicalPath: path, Version: version}
	}

	out := make([]Artifact, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// parseJarName разбирает "name.vN.jar" в ("name.jar", N); без версии N=0.
func parseJarName(file string) (string, int) {
	m := versionedJar.FindStringSubmatch(file)
	if m == nil {
		return file, 0
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return file, 0
	}
	return m[1] + ".jar", v
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}
