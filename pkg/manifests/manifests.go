// Package manifests knows which files Vulnmap can monitor as projects and
// finds them in a local checkout.
package manifests

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
)

// OpenSourcePackageManagers maps a project type to the manifest file names
// (shell patterns) it is created from.
var OpenSourcePackageManagers = map[string][]string{
	"npm":            {"package.json"},
	"rubygems":       {"Gemfile.lock"},
	"yarn":           {"yarn.lock"},
	"yarn-workspace": {"yarn.lock"},
	"maven":          {"pom.xml"},
	"gradle":         {"build.gradle", "build.gradle.kts"},
	"sbt":            {"build.sbt"},
	"pip":            {"requirements.txt"},
	"poetry":         {"pyproject.toml", "poetry.lock"},
	"pipenv":         {"Pipfile"},
	"golangdep":      {"Gopkg.lock"},
	"govendor":       {"vendor.json"},
	"gomodules":      {"go.mod"},
	"nuget":          {"packages.config", "*.csproj", "*.fsproj", "*.vbproj", "project.json", "project.assets.json", "*.targets", "*.props", "packages.lock.json"},
	"paket":          {"paket.dependencies"},
	"composer":       {"composer.lock"},
	"cocoapods":      {"Podfile", "Podfile.lock"},
	"hex":            {"mix.exs"},
	"swift":          {"Package.swift"},
}

// Container maps container project types to their build files.
var Container = map[string][]string{
	"dockerfile": {"Dockerfile", "*.Dockerfile", "Dockerfile.*"},
}

// DefaultTypes is the set of project types reconciled unless the caller
// asks for more: every open source package manager.
func DefaultTypes() []string {
	return keys(OpenSourcePackageManagers)
}

// TypesWithContainer adds container types to DefaultTypes.
func TypesWithContainer() []string {
	return append(DefaultTypes(), keys(Container)...)
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func patternsFor(projectType string) []string {
	if p, ok := OpenSourcePackageManagers[projectType]; ok {
		return p
	}
	return Container[projectType]
}

// MatchesType reports whether the base name of p is a manifest for any of
// the given project types.
func MatchesType(p string, types []string) bool {
	base := path.Base(filepath.ToSlash(p))
	for _, t := range types {
		for _, pattern := range patternsFor(t) {
			if ok, _ := path.Match(pattern, base); ok {
				return true
			}
		}
	}
	return false
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Find walks root and returns the slash separated paths, relative to root,
// of every manifest for the given types, in lexical order.
func Find(root string, types []string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !MatchesType(d.Name(), types) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}
