package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	goipp "github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func ippServer(t *testing.T, seen *[]goipp.Message) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req goipp.Message
		if err := req.Decode(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		*seen = append(*seen, req)
		groups := goipp.Groups{{Tag: goipp.TagOperationGroup, Attrs: goipp.Attributes{
			goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")),
			goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-us")),
		}}}
		switch goipp.Op(req.Code) {
		case goipp.OpCupsGetDevices:
			groups = append(groups,
				dev("usb://Acme/Laser", "direct"),
				dev("socket://10.0.0.5", "network"))
		case goipp.OpCupsGetPpds:
			groups = append(groups,
				drv("drv:///acme/100.ppd", "Acme Laser 100"),
				drv("drv:///acme/9.ppd", "Acme Laser 9"))
		}
		resp := goipp.NewMessageWithGroups(req.Version, goipp.Code(goipp.StatusOk), req.RequestID, groups)
		w.Header().Set("Content-Type", goipp.ContentType)
		_ = resp.Encode(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dev(uri, class string) goipp.Group {
	return goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("device-class", goipp.TagKeyword, goipp.String(class)),
		goipp.MakeAttribute("device-info", goipp.TagText, goipp.String("Acme")),
		goipp.MakeAttribute("device-uri", goipp.TagURI, goipp.String(uri)),
	}}
}

func drv(name, model string) goipp.Group {
	return goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: goipp.Attributes{
		goipp.MakeAttribute("ppd-name", goipp.TagName, goipp.String(name)),
		goipp.MakeAttribute("ppd-make-and-model", goipp.TagText, goipp.String(model)),
	}}
}

func runLpinfo(t *testing.T, args ...string) (string, []goipp.Message) {
	t.Helper()
	var seen []goipp.Message
	srv := ippServer(t, &seen)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(""), &out)
	cmd.SetArgs(append([]string{"-h", u.Host}, args...))
	require.NoError(t, cmd.Execute())
	return out.String(), seen
}

func TestLpinfoDevices(t *testing.T) {
	out, seen := runLpinfo(t, "-v", "--timeout", "5", "--exclude-schemes", "dnssd")
	assert.Equal(t, "network socket://10.0.0.5\ndirect usb://Acme/Laser\n", out)
	require.Len(t, seen, 1)
	var timeout string
	for _, a := range seen[0].Operation {
		if a.Name == "timeout" {
			timeout = a.Values[0].V.String()
		}
	}
	assert.Equal(t, "5", timeout)
}

func TestLpinfoDriversYAML(t *testing.T) {
	out, _ := runLpinfo(t, "-m", "--yaml")
	var list []driver
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Acme Laser 9", list[0].Model)
	assert.Equal(t, "drv:///acme/100.ppd", list[1].Name)
}

func TestLpinfoNeedsOneMode(t *testing.T) {
	cmd := newRootCmd(strings.NewReader(""), &bytes.Buffer{})
	cmd.SetArgs([]string{"-v", "-m"})
	assert.Error(t, cmd.Execute())
}
