// Package manifest renders OTA install manifests and the links that point at them.
package manifest

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"
)

const defaultVersion = "1.0"

const packageURL = "https://${DOMAIN}/download/${PROJECT_NAME}/${BRANCH_TAG}/${FILE_NAME}"

const legacyPackageURL = "https://${DOMAIN}/download/${BRANCH_TAG}/${FILE_NAME}"

const template = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>items</key>
    <array>
        <dict>
            <key>assets</key>
            <array>
                <dict>
                    <key>kind</key>
                    <string>software-package</string>
                    <key>url</key>
                    <string>${PACKAGE_URL}</string>
                </dict>
            </array>
            <key>metadata</key>
            <dict>
                <key>bundle-identifier</key>
                <string>${BUNDLE_IDENTIFIER}</string>
                <key>bundle-version</key>
                <string>${APPLICATION_VERSION}</string>
                <key>kind</key>
                <string>software</string>
                <key>title</key>
                <string>${DISPLAY_NAME}</string>
            </dict>
        </dict>
    </array>
</dict>
</plist>
`

// Params are the values substituted into the manifest template.
type Params struct {
	Domain             string
	ProjectName        string
	BranchTag          string
	FileName           string
	BundleIdentifier   string
	ApplicationVersion string
	DisplayName        string
	Legacy             bool // Package URL without the project segment.
}

// Version formats a build number as the bundle version.
func Version(buildNumber int) string {
	if buildNumber <= 0 {
		return defaultVersion
	}
	return strconv.Itoa(buildNumber)
}

// Render returns the plist document for p.
func Render(p Params) string {
	pkg := packageURL
	if p.Legacy {
		pkg = legacyPackageURL
	}
	version := p.ApplicationVersion
	if version == "" {
		version = defaultVersion
	}
	pkg = strings.NewReplacer(
		"${DOMAIN}", p.Domain,
		"${PROJECT_NAME}", url.PathEscape(p.ProjectName),
		"${BRANCH_TAG}", url.PathEscape(p.BranchTag),
		"${FILE_NAME}", url.PathEscape(p.FileName),
	).Replace(pkg)

	return strings.NewReplacer(
		"${PACKAGE_URL}", escape(pkg),
		"${BUNDLE_IDENTIFIER}", escape(p.BundleIdentifier),
		"${APPLICATION_VERSION}", escape(version),
		"${DISPLAY_NAME}", escape(p.DisplayName),
	).Replace(template)
}

// ManifestURL is the https location of the manifest for a branch. An empty
// project yields the legacy single-project path.
func ManifestURL(domain, project, tag string) string {
	base := "https://" + domain + "/install/"
	if project != "" {
		base += url.PathEscape(project) + "/"
	}
	return base + url.PathEscape(tag) + "/manifest.plist"
}

// InstallURL is the itms-services link that makes a device fetch the manifest.
func InstallURL(domain, project, tag string) string {
	return "itms-services://?action=download-manifest&url=" + ManifestURL(domain, project, tag)
}

// BranchPageURL is the human-facing page for a branch.
func BranchPageURL(project, tag string) string {
	return "/projects/" + url.PathEscape(project) + "/branches/" + url.PathEscape(tag)
}

// IsNativeClient reports whether the user agent belongs to a device that can install OTA builds.
func IsNativeClient(userAgent string) bool {
	for _, marker := range []string{"iPhone", "iPad", "iPod"} {
		if strings.Contains(userAgent, marker) {
			return true
		}
	}
	return false
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
