package idxprovider

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/realty/backend/internal/domain/listing"
)

// pageEnvelope covers the page shapes seen across feeds: a records array
// under one of several keys, with hasMore, a total count or a next link
// as the continuation signal.
type pageEnvelope struct {
	Properties []json.RawMessage `json:"properties"`
	Listings   []json.RawMessage `json:"listings"`
	Data       []json.RawMessage `json:"data"`
	Results    []json.RawMessage `json:"results"`
	Value      []json.RawMessage `json:"value"`

	HasMore    *bool  `json:"hasMore"`
	Total      *int   `json:"total"`
	TotalCount *int   `json:"totalCount"`
	ODataCount *int   `json:"@odata.count"`
	NextLink   string `json:"@odata.nextLink"`
	Next       string `json:"next"`
}

func (e *pageEnvelope) records() []json.RawMessage {
	for _, r := range [][]json.RawMessage{e.Properties, e.Listings, e.Data, e.Results, e.Value} {
		if r != nil {
			return r
		}
	}
	return nil
}

func (e *pageEnvelope) total() int {
	for _, t := range []*int{e.Total, e.TotalCount, e.ODataCount} {
		if t != nil {
			return *t
		}
	}
	return -1
}

// decodedPage is a page after per-record decoding
type decodedPage struct {
	records     []listing.RawExternalProperty
	undecodable int
	hasMore     bool
	total       int
}

var errUnexpectedPayload = errors.New("payload is neither a records array nor a page object")

// decodePage decodes a provider page. Records are decoded one at a time so
// a single record of the wrong shape is counted instead of failing the page.
func decodePage(body []byte, page, pageSize int) (*decodedPage, error) {
	body = bytes.TrimSpace(body)
	var (
		raws []json.RawMessage
		env  pageEnvelope
	)
	switch {
	case len(body) > 0 && body[0] == '[':
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, err
		}
	case len(body) > 0 && body[0] == '{':
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, err
		}
		raws = env.records()
	default:
		return nil, errUnexpectedPayload
	}

	out := &decodedPage{
		records: make([]listing.RawExternalProperty, 0, len(raws)),
		total:   env.total(),
	}
	for _, raw := range raws {
		var rec listing.RawExternalProperty
		if err := json.Unmarshal(raw, &rec); err != nil {
			out.undecodable++
			continue
		}
		out.records = append(out.records, rec)
	}

	switch {
	case env.HasMore != nil:
		out.hasMore = *env.HasMore
	case env.NextLink != "" || env.Next != "":
		out.hasMore = true
	case out.total >= 0:
		out.hasMore = page*pageSize < out.total
	default:
		// no signal: a full page may have a successor
		out.hasMore = len(raws) >= pageSize
	}
	if len(raws) == 0 {
		out.hasMore = false
	}
	return out, nil
}
