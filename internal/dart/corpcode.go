package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const corpCodePath = "/corpCode.xml"

// Corp is one entry of the DART entity directory.
type Corp struct {
	Code       string
	Name       string
	StockCode  string
	ModifyDate string
}

type corpCodeDocument struct {
	List []struct {
		CorpCode   string `xml:"corp_code"`
		CorpName   string `xml:"corp_name"`
		StockCode  string `xml:"stock_code"`
		ModifyDate string `xml:"modify_date"`
	} `xml:"list"`
}

// FetchCorpCodes downloads the full entity directory. The API serves a zip
// archive holding one XML document; errors come back as a JSON body instead.
func (c *Client) FetchCorpCodes(ctx context.Context) ([]Corp, error) {
	resp, err := c.get(ctx, corpCodePath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading directory archive: %w", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		var status statementResponse
		if jsonErr := json.Unmarshal(body, &status); jsonErr == nil && status.Status != "" {
			if sErr := statusErr(status.Status, status.Message); sErr != nil {
				return nil, sErr
			}
		}
		return nil, fmt.Errorf("opening directory archive: %w", err)
	}
	if len(archive.File) == 0 {
		return nil, fmt.Errorf("directory archive is empty")
	}

	f, err := archive.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", archive.File[0].Name, err)
	}
	defer f.Close()

	return parseCorpCodes(f)
}

func parseCorpCodes(r io.Reader) ([]Corp, error) {
	var doc corpCodeDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing directory xml: %w", err)
	}

	corps := make([]Corp, 0, len(doc.List))
	for _, e := range doc.List {
		code := strings.TrimSpace(e.CorpCode)
		name := strings.TrimSpace(e.CorpName)
		if code == "" || name == "" {
			continue
		}
		corps = append(corps, Corp{
			Code:       code,
			Name:       name,
			StockCode:  strings.TrimSpace(e.StockCode),
			ModifyDate: strings.TrimSpace(e.ModifyDate),
		})
	}
	return corps, nil
}
