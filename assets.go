package chartlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/chartlog/chartlog/vdir"
)

// Chart assets live under charts/{sanitized project}/{sanitized theme}/
// as a binary image plus a JSON metadata sidecar sharing the base name.
// Data written by an older layout version kept everything flat under
// charts/, which reads still fall back to.

// ResolveChartDir ensures charts/{project}/{theme}/ exists under the
// root and returns it. Empty names default to the reserved project and
// the global theme folder.
func ResolveChartDir(root vdir.Dir, projectName, themeName string) (vdir.Dir, error) {
	if projectName == "" {
		projectName = DefaultProjectName
	}
	if themeName == "" {
		themeName = DefaultThemeName
	}
	charts, err := root.GetOrCreateChild(ChartsDirName)
	if err != nil {
		return vdir.Dir{}, err
	}
	project, err := charts.GetOrCreateChild(SanitizeName(projectName))
	if err != nil {
		return vdir.Dir{}, err
	}
	return project.GetOrCreateChild(SanitizeName(themeName))
}

// SaveImage writes the binary image into the resolved chart directory,
// creating or overwriting it.
func SaveImage(root vdir.Dir, fileName string, data []byte, projectName, themeName string) error {
	dir, err := ResolveChartDir(root, projectName, themeName)
	if err != nil {
		return fmt.Errorf("persist error: cannot resolve chart directory: %w", err)
	}
	if err := dir.WriteFile(fileName, data); err != nil {
		return fmt.Errorf("persist error: cannot write image %q: %w", fileName, err)
	}
	return nil
}

// SaveMetadata writes the chart's JSON sidecar next to its image.
func SaveMetadata(root vdir.Dir, imageFileName string, c Chart, projectName, themeName string) error {
	dir, err := ResolveChartDir(root, projectName, themeName)
	if err != nil {
		return fmt.Errorf("persist error: cannot resolve chart directory: %w", err)
	}
	data, err := encodeDocument(c)
	if err != nil {
		return err
	}
	name := SidecarName(imageFileName)
	if err := dir.WriteFile(name, data); err != nil {
		return fmt.Errorf("persist error: cannot write sidecar %q: %w", name, err)
	}
	return nil
}

// ReadImage reads an image, trying the nested layout first and falling
// back to the legacy flat charts/{fileName} location. It returns
// (nil, nil) when the file exists in neither place: a missing preview
// is not an error.
func ReadImage(root vdir.Dir, fileName, projectName, themeName string) ([]byte, error) {
	dir, err := ResolveChartDir(root, projectName, themeName)
	if err == nil {
		data, err := dir.ReadFile(fileName)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, vdir.ErrNotFound) {
			return nil, err
		}
	}
	charts, err := root.Child(ChartsDirName)
	if err != nil {
		if errors.Is(err, vdir.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	data, err := charts.ReadFile(fileName)
	if err != nil {
		if errors.Is(err, vdir.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// DeleteAssets removes an image and its sidecar. Each removal is
// independently best-effort: a missing file is not an error, only an
// unexpected I/O fault is surfaced.
func DeleteAssets(root vdir.Dir, imageFileName, projectName, themeName string) error {
	dir, err := ResolveChartDir(root, projectName, themeName)
	if err != nil {
		return fmt.Errorf("persist error: cannot resolve chart directory: %w", err)
	}
	var firstErr error
	for _, name := range []string{imageFileName, SidecarName(imageFileName)} {
		if err := dir.Remove(name, false); err != nil && !errors.Is(err, vdir.ErrNotFound) {
			if firstErr == nil {
				firstErr = err
			}
			log.Printf("delete-asset name=%q err=%v", name, err)
		}
	}
	return firstErr
}

// ScanAllMetadata walks charts/ and collects every chart metadata
// sidecar: first any stray JSON files directly at the charts/ root
// (legacy flat layout), then every project/theme directory pair.
// Directories that fail to open are skipped, not fatal. This scan is
// the recovery path used when no chart index document exists.
func ScanAllMetadata(root vdir.Dir) ([]Chart, error) {
	charts := []Chart{}
	dir, err := root.Child(ChartsDirName)
	if err != nil {
		if errors.Is(err, vdir.ErrNotFound) {
			return charts, nil
		}
		return charts, err
	}

	entries, err := dir.Entries()
	if err != nil {
		return charts, err
	}
	for _, e := range entries {
		switch e.Kind {
		case vdir.KindFile:
			// Legacy flat layout sidecar.
			if c, ok := readSidecar(dir, e.Name); ok {
				charts = append(charts, c)
			}
		case vdir.KindDir:
			projectDir, err := dir.Child(e.Name)
			if err != nil {
				log.Printf("scan-skip dir=%q err=%v", e.Name, err)
				continue
			}
			charts = append(charts, scanProjectDir(projectDir)...)
		}
	}
	return charts, nil
}

// scanProjectDir collects sidecars from every theme directory under a
// project directory.
func scanProjectDir(projectDir vdir.Dir) []Chart {
	var charts []Chart
	entries, err := projectDir.Entries()
	if err != nil {
		log.Printf("scan-skip dir=%q err=%v", projectDir.Path(), err)
		return nil
	}
	for _, e := range entries {
		if e.Kind != vdir.KindDir {
			continue
		}
		themeDir, err := projectDir.Child(e.Name)
		if err != nil {
			log.Printf("scan-skip dir=%q err=%v", e.Name, err)
			continue
		}
		files, err := themeDir.Entries()
		if err != nil {
			log.Printf("scan-skip dir=%q err=%v", e.Name, err)
			continue
		}
		for _, f := range files {
			if f.Kind != vdir.KindFile {
				continue
			}
			if c, ok := readSidecar(themeDir, f.Name); ok {
				charts = append(charts, c)
			}
		}
	}
	return charts
}

// readSidecar parses one metadata sidecar. Non-JSON files and corrupt
// sidecars are skipped.
func readSidecar(dir vdir.Dir, name string) (Chart, bool) {
	if !strings.HasSuffix(name, ".json") {
		return Chart{}, false
	}
	data, err := dir.ReadFile(name)
	if err != nil {
		log.Printf("scan-skip file=%q err=%v", name, err)
		return Chart{}, false
	}
	var c Chart
	if err := json.Unmarshal(data, &c); err != nil {
		log.Printf("scan-skip file=%q err=%v", name, err)
		return Chart{}, false
	}
	if c.ID == "" {
		return Chart{}, false
	}
	return c, true
}
