package resolver

import (
	"context"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"github.com/datashift/migrascope/model"
)

var (
	oozieConfigPropertyRE = regexp.MustCompile(`(?is)<property>\s*<name>\s*(.*?)\s*</name>\s*<value>\s*(.*?)\s*</value>\s*</property>`)
	mavenPropertiesRE     = regexp.MustCompile(`(?is)<properties>(.*?)</properties>`)
	mavenPropertyTagRE    = regexp.MustCompile(`(?s)<([a-zA-Z0-9_.-]+)>(.*?)</[a-zA-Z0-9_.-]+>`)
	whitespaceRE          = regexp.MustCompile(`\s+`)
)

// LoadDefinitions is the read-only definitions pass that runs before
// resolution. It harvests definition candidates from the inventoried files:
// Java properties files, <property> blocks inside Oozie/Hadoop XML, Maven
// pom <properties> blocks (all properties-file scope) and .env files
// (environment-default scope). Unreadable files degrade to a diagnostic and
// are skipped.
func LoadDefinitions(ctx context.Context, fs afs.Service, rootURL string,
	files []model.FileRecord, diags *model.Diagnostics) []Candidate {

	var out []Candidate
	for _, f := range files {
		kinds := sourceKinds(f)
		if len(kinds) == 0 {
			continue
		}
		location := url.Join(rootURL, f.Path)
		data, err := fs.DownloadWithURL(ctx, location)
		if err != nil {
			diags.Add(component, model.DiagSourceUnreadable, f.Path, "cannot read definition source: %v", err)
			continue
		}
		text := string(data)
		for _, kind := range kinds {
			switch kind {
			case "properties":
				out = appendDefinitions(out, parseProperties(text), ScopePropertiesFile, f.Path)
			case "xml_config":
				out = appendDefinitions(out, parseConfigXML(text), ScopePropertiesFile, f.Path)
			case "maven":
				out = appendDefinitions(out, parseMavenProperties(text), ScopePropertiesFile, f.Path)
			case "env":
				env, err := godotenv.Unmarshal(text)
				if err != nil {
					diags.Add(component, model.DiagSourceUnreadable, f.Path, "cannot parse env file: %v", err)
					continue
				}
				out = appendDefinitions(out, pairsOf(env), ScopeEnvironmentDefault, f.Path)
			}
		}
	}
	return out
}

// sourceKinds decides which definition formats a file may carry, from its
// detected type with a suffix fallback.
func sourceKinds(f model.FileRecord) []string {
	name := strings.ToLower(path.Base(f.Path))
	var kinds []string
	switch {
	case f.DetectedType == "properties" || f.DetectedType == "ini_conf" || strings.HasSuffix(name, ".properties"):
		kinds = append(kinds, "properties")
	case f.DetectedType == "env_file" || name == ".env" || strings.HasSuffix(name, ".env"):
		kinds = append(kinds, "env")
	}
	if name == "pom.xml" || f.DetectedType == "build_maven" {
		kinds = append(kinds, "maven")
	} else if strings.HasPrefix(f.DetectedType, "oozie_") || strings.HasSuffix(name, ".xml") {
		kinds = append(kinds, "xml_config")
	}
	return kinds
}

type pair struct {
	key   string
	value string
}

func pairsOf(m map[string]string) []pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable candidate order regardless of map iteration.
	sort.Strings(keys)
	out := make([]pair, 0, len(keys))
	for _, k := range keys {
		out = append(out, pair{key: k, value: m[k]})
	}
	return out
}

func appendDefinitions(dst []Candidate, pairs []pair, scope Scope, definedIn string) []Candidate {
	for _, p := range pairs {
		if p.key == "" {
			continue
		}
		dst = append(dst, Candidate{
			Scope:     scope,
			Key:       p.key,
			Value:     p.value,
			Priority:  scope.priority(),
			DefinedIn: definedIn,
		})
	}
	return dst
}

// parseProperties parses Java-properties syntax: key=value or key:value
// lines, with # and ! comments. Declaration order is preserved.
func parseProperties(text string) []pair {
	var out []pair
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		eq := strings.Index(line, "=")
		colon := strings.Index(line, ":")
		sep := eq
		if sep == -1 || (colon != -1 && colon < sep) {
			sep = colon
		}
		if sep == -1 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		if key != "" {
			out = append(out, pair{key: key, value: value})
		}
	}
	return out
}

// parseConfigXML extracts <property><name>k</name><value>v</value></property>
// blocks as found in Oozie and Hadoop configuration XML.
func parseConfigXML(text string) []pair {
	var out []pair
	for _, m := range oozieConfigPropertyRE.FindAllStringSubmatch(text, -1) {
		key := collapseWhitespace(m[1])
		value := collapseWhitespace(m[2])
		if key != "" {
			out = append(out, pair{key: key, value: value})
		}
	}
	return out
}

// parseMavenProperties extracts the tag/value pairs of a pom.xml
// <properties> block.
func parseMavenProperties(text string) []pair {
	block := mavenPropertiesRE.FindStringSubmatch(text)
	if block == nil {
		return nil
	}
	var out []pair
	for _, m := range mavenPropertyTagRE.FindAllStringSubmatch(block[1], -1) {
		key := strings.TrimSpace(m[1])
		value := collapseWhitespace(m[2])
		if key != "" && value != "" {
			out = append(out, pair{key: key, value: value})
		}
	}
	return out
}

func collapseWhitespace(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}
