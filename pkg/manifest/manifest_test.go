package manifest

import (
	"strings"
	"testing"

	"github.com/cboyd0319/security-central/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirements(t *testing.T) {
	data := `# Core dependencies
requests==2.30.0
Flask>=2.2.0
urllib3==1.26.5,<2.0
pyyaml==6.0.1  # pinned
jinja2>=3.1.2 ; python_version >= "3.8"
-r dev-requirements.txt
rich
`
	usages := parseRequirements([]byte(data), "acme/api", "requirements.txt")
	require.Len(t, usages, 5, "comments, includes and unbounded lines are skipped")

	assert.Equal(t, types.PackageUsage{
		Repository:   "acme/api",
		Package:      "requests",
		Ecosystem:    types.EcosystemPyPI,
		Version:      "2.30.0",
		ManifestPath: "requirements.txt",
	}, usages[0])
	assert.Equal(t, "flask", usages[1].Package, "package names are lowercased")
	assert.Equal(t, "2.2.0", usages[1].Version)
	assert.Equal(t, "1.26.5", usages[2].Version, "only the first bound of a compound constraint counts")
	assert.Equal(t, "6.0.1", usages[3].Version, "inline comments do not ride into the version")
	assert.Equal(t, "3.1.2", usages[4].Version, "environment markers do not ride into the version")
}

func TestParsePyproject(t *testing.T) {
	data := `[project]
name = "service-a"
dependencies = [
    "pydantic>=2.4.0",
    "click",
]

[tool.poetry.dependencies]
python = "^3.11"
httpx = "^0.25.0"
structlog = { version = "~23.1.0", optional = true }
`
	usages, err := parsePyproject([]byte(data), "acme/api", "pyproject.toml")
	require.NoError(t, err)
	require.Len(t, usages, 3)

	assert.Equal(t, "pydantic", usages[0].Package)
	assert.Equal(t, "2.4.0", usages[0].Version)
	assert.Equal(t, "httpx", usages[1].Package)
	assert.Equal(t, "0.25.0", usages[1].Version, "poetry caret constraints are stripped")
	assert.Equal(t, "structlog", usages[2].Package)
	assert.Equal(t, "23.1.0", usages[2].Version, "table-form poetry deps contribute their version key")
}

func TestParsePyprojectInvalid(t *testing.T) {
	_, err := parsePyproject([]byte("not = [toml"), "acme/api", "pyproject.toml")
	assert.ErrorContains(t, err, "invalid pyproject.toml")
}

func TestParsePackageJSON(t *testing.T) {
	data := `{
  "dependencies": {"lodash": "^4.17.20", "express": "~4.17.1"},
  "devDependencies": {"jest": "29.5.0"}
}`
	usages, err := parsePackageJSON([]byte(data), "acme/web", "package.json")
	require.NoError(t, err)
	require.Len(t, usages, 3)

	assert.Equal(t, "express", usages[0].Package)
	assert.Equal(t, "4.17.1", usages[0].Version)
	assert.Equal(t, "lodash", usages[1].Package)
	assert.Equal(t, "4.17.20", usages[1].Version)
	assert.Equal(t, "jest", usages[2].Package, "devDependencies count too")

	_, err = parsePackageJSON([]byte("{"), "acme/web", "package.json")
	assert.ErrorContains(t, err, "invalid package.json")
}

func TestParsePOM(t *testing.T) {
	data := `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <dependencies>
    <dependency>
      <groupId>com.fasterxml.jackson.core</groupId>
      <artifactId>jackson-databind</artifactId>
      <version>2.15.2</version>
    </dependency>
    <dependency>
      <groupId>org.apache.logging.log4j</groupId>
      <artifactId>log4j-core</artifactId>
      <version>${log4j.version}</version>
    </dependency>
    <dependency>
      <groupId>junit</groupId>
      <artifactId>junit</artifactId>
    </dependency>
  </dependencies>
</project>`
	usages, err := parsePOM(strings.NewReader(data), "acme/jvm", "pom.xml")
	require.NoError(t, err)
	require.Len(t, usages, 1, "interpolated and versionless dependencies are skipped")

	assert.Equal(t, types.PackageUsage{
		Repository:   "acme/jvm",
		Package:      "com.fasterxml.jackson.core:jackson-databind",
		Ecosystem:    types.EcosystemMaven,
		Version:      "2.15.2",
		ManifestPath: "pom.xml",
	}, usages[0])
}

func TestCollect(t *testing.T) {
	usages, err := Collect("testdata/repos")
	require.NoError(t, err)

	byRepo := map[string][]types.PackageUsage{}
	for _, u := range usages {
		require.NotContains(t, u.ManifestPath, "node_modules")
		byRepo[u.Repository] = append(byRepo[u.Repository], u)
	}

	require.Len(t, byRepo, 3, "hidden directories and stray files are not repositories")
	assert.Len(t, byRepo["service-a"], 6)
	assert.Len(t, byRepo["service-b"], 3, "the unparseable manifest is tolerated")
	assert.Len(t, byRepo["service-c"], 1, "the zero-byte package.json declares nothing")

	for _, u := range usages {
		assert.NotEqual(t, "should-never-appear", u.Package)
	}
}

func TestCollectMissingRoot(t *testing.T) {
	_, err := Collect("testdata/no-such-dir")
	assert.ErrorContains(t, err, "failed to read repos directory")
}
