package export

import (
	"encoding/xml"
	"strconv"
	"time"

	"github.com/utafrali/finsearch/internal/domain"
)

// FeedVersion is the export format version announced in the root element.
const FeedVersion = "1.0"

// Feed is the XML document of one export page.
type Feed struct {
	XMLName xml.Name  `xml:"findologic"`
	Version string    `xml:"version,attr"`
	Items   feedItems `xml:"items"`
}

type feedItems struct {
	Start int        `xml:"start,attr"`
	Count int        `xml:"count,attr"`
	Total int        `xml:"total,attr"`
	Items []feedItem `xml:"item"`
}

type cdata struct {
	Value string `xml:",cdata"`
}

type feedPrice struct {
	Usergroup string `xml:"usergroup,attr,omitempty"`
	Value     string `xml:",cdata"`
}

type feedImage struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",cdata"`
}

type feedAttribute struct {
	Key    cdata   `xml:"key"`
	Values []cdata `xml:"values>value"`
}

type feedProperty struct {
	Key   cdata `xml:"key"`
	Value cdata `xml:"value"`
}

type feedSummaries struct {
	Summary cdata `xml:"summary"`
}

type feedDescriptions struct {
	Description cdata `xml:"description"`
}

type feedDateAdded struct {
	DateAdded cdata `xml:"dateAdded"`
}

type feedItem struct {
	ID             int64             `xml:"id,attr"`
	OrderNumbers   []cdata           `xml:"allOrdernumbers>ordernumbers>ordernumber"`
	Names          []cdata           `xml:"names>name"`
	Summaries      *feedSummaries    `xml:"summaries"`
	Descriptions   *feedDescriptions `xml:"descriptions"`
	Prices         []feedPrice       `xml:"prices>price"`
	URLs           []cdata           `xml:"urls>url"`
	Keywords       []cdata           `xml:"keywords>keyword"`
	Images         []feedImage       `xml:"allImages>images>image"`
	SalesFrequency []cdata           `xml:"salesFrequencies>salesFrequency"`
	DateAdded      *feedDateAdded    `xml:"dateAddeds"`
	Attributes     []feedAttribute   `xml:"allAttributes>attributes>attribute"`
	Properties     []feedProperty    `xml:"allProperties>properties>property"`
	Usergroups     []cdata           `xml:"usergroups>usergroup"`
}

// NewFeed wraps batch into the feed envelope.
func NewFeed(batch *domain.ExportBatch) *Feed {
	f := &Feed{
		Version: FeedVersion,
		Items: feedItems{
			Start: batch.Offset,
			Count: batch.Count,
			Total: batch.Total,
			Items: make([]feedItem, 0, len(batch.Items)),
		},
	}
	for i := range batch.Items {
		f.Items.Items = append(f.Items.Items, newFeedItem(&batch.Items[i]))
	}
	return f
}

func newFeedItem(it *domain.ExportItem) feedItem {
	fi := feedItem{
		ID:             it.ID,
		OrderNumbers:   texts(it.OrderNumbers),
		Names:          []cdata{{it.Name}},
		URLs:           []cdata{{it.URL}},
		Keywords:       texts(it.Keywords),
		SalesFrequency: []cdata{{strconv.Itoa(it.SalesFrequency)}},
		Usergroups:     texts(it.Usergroups),
	}
	if it.Summary != "" {
		fi.Summaries = &feedSummaries{Summary: cdata{it.Summary}}
	}
	if it.Description != "" {
		fi.Descriptions = &feedDescriptions{Description: cdata{it.Description}}
	}
	if !it.DateAdded.IsZero() {
		fi.DateAdded = &feedDateAdded{DateAdded: cdata{it.DateAdded.Format(time.RFC3339)}}
	}
	for _, p := range it.Prices {
		fi.Prices = append(fi.Prices, feedPrice{Usergroup: p.Usergroup, Value: p.Value})
	}
	for _, img := range it.Images {
		fi.Images = append(fi.Images, feedImage{Type: img.Type, Value: img.URL})
	}
	for _, a := range it.Attributes {
		fi.Attributes = append(fi.Attributes, feedAttribute{Key: cdata{a.Key}, Values: texts(a.Values)})
	}
	for _, p := range it.Properties {
		fi.Properties = append(fi.Properties, feedProperty{Key: cdata{p.Key}, Value: cdata{p.Value}})
	}
	return fi
}

func texts(values []string) []cdata {
	out := make([]cdata, 0, len(values))
	for _, v := range values {
		out = append(out, cdata{v})
	}
	return out
}
