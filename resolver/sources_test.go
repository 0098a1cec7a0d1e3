package resolver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/datashift/migrascope/model"
	"github.com/datashift/migrascope/resolver"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf/job.properties", `
# cluster endpoints
db.host=prod-db
queue.name: etl
!ignored=yes
db.url=jdbc:hive2://${db.host}:10000
`)
	writeFile(t, dir, "apps/etl/workflow.xml", `
<workflow-app name="etl">
  <global>
    <configuration>
      <property><name>oozie.use.system.libpath</name><value>true</value></property>
    </configuration>
  </global>
</workflow-app>
`)
	writeFile(t, dir, "pom.xml", `
<project>
  <properties>
    <spark.version>2.4.8</spark.version>
    <scala.binary>2.11</scala.binary>
  </properties>
</project>
`)
	writeFile(t, dir, ".env", "REGION=us-east-1\n")

	files := []model.FileRecord{
		{Path: "conf/job.properties", DetectedType: "properties"},
		{Path: "apps/etl/workflow.xml", DetectedType: "oozie_workflow_xml"},
		{Path: "pom.xml", DetectedType: "build_maven"},
		{Path: ".env", DetectedType: "env_file"},
		{Path: "data/events.parquet", DetectedType: "binary"},
	}

	var diags model.Diagnostics
	candidates := resolver.LoadDefinitions(context.Background(), afs.New(), dir, files, &diags)
	assert.Empty(t, diags)

	byKey := make(map[string]resolver.Candidate)
	for _, c := range candidates {
		byKey[c.Key] = c
	}

	assert.Equal(t, "prod-db", byKey["db.host"].Value)
	assert.Equal(t, resolver.ScopePropertiesFile, byKey["db.host"].Scope)
	assert.Equal(t, "etl", byKey["queue.name"].Value, "colon separator supported")
	assert.NotContains(t, byKey, "!ignored")
	assert.Equal(t, "jdbc:hive2://${db.host}:10000", byKey["db.url"].Value)

	assert.Equal(t, "true", byKey["oozie.use.system.libpath"].Value)
	assert.Equal(t, "conf/job.properties", byKey["db.host"].DefinedIn)

	assert.Equal(t, "2.4.8", byKey["spark.version"].Value)
	assert.Equal(t, "2.11", byKey["scala.binary"].Value)

	require.Contains(t, byKey, "REGION")
	assert.Equal(t, resolver.ScopeEnvironmentDefault, byKey["REGION"].Scope)
	assert.Equal(t, "us-east-1", byKey["REGION"].Value)
}

// Roots may arrive scheme-qualified (file://, s3://); joining must keep the
// scheme's double slash intact.
func TestLoadDefinitions_SchemeQualifiedRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf/job.properties", "db.host=prod-db\n")
	files := []model.FileRecord{{Path: "conf/job.properties", DetectedType: "properties"}}

	var diags model.Diagnostics
	candidates := resolver.LoadDefinitions(context.Background(), afs.New(), "file://"+dir, files, &diags)

	assert.Empty(t, diags)
	require.Len(t, candidates, 1)
	assert.Equal(t, "db.host", candidates[0].Key)
	assert.Equal(t, "prod-db", candidates[0].Value)
}

func TestLoadDefinitions_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	files := []model.FileRecord{{Path: "conf/missing.properties", DetectedType: "properties"}}

	var diags model.Diagnostics
	candidates := resolver.LoadDefinitions(context.Background(), afs.New(), dir, files, &diags)

	assert.Empty(t, candidates)
	assert.Equal(t, 1, diags.Counts()[model.DiagSourceUnreadable])
}

func TestBuildIndex_FirstDefinitionWinsWithinScope(t *testing.T) {
	definitions := []resolver.Candidate{
		{Scope: resolver.ScopePropertiesFile, Key: "k", Value: "first", DefinedIn: "a.properties"},
		{Scope: resolver.ScopePropertiesFile, Key: "k", Value: "second", DefinedIn: "b.properties"},
	}
	idx := resolver.BuildIndex(nil, nil, definitions, nil)

	cand, ok := idx.Lookup("k", "")
	require.True(t, ok)
	assert.Equal(t, "first", cand.Value)
}
