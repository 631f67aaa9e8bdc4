// Package segment assembles the per-customer profile table and keeps track of
// the pipeline runs that produced it.
package segment

import (
	"github.com/MrJamesThe3rd/segmenter/internal/cluster"
	"github.com/MrJamesThe3rd/segmenter/internal/clv"
	"github.com/MrJamesThe3rd/segmenter/internal/feature"
)

// Profile is the final record for one customer. A nil CLV6m marks the value
// as unestimable and a nil cluster label marks the customer as unclustered by
// that method.
type Profile struct {
	CustomerID     string         `json:"customer_id"`
	Recency        int            `json:"recency"`
	Frequency      int            `json:"frequency"`
	Monetary       float64        `json:"monetary"`
	Shares         feature.Shares `json:"category_shares"`
	PrimaryCountry string         `json:"primary_country"`
	IsUK           bool           `json:"is_uk"`

	CLV6m             *float64 `json:"clv_6m"`
	ExpectedPurchases *float64 `json:"expected_purchases,omitempty"`
	ProbAlive         *float64 `json:"prob_alive,omitempty"`

	KMeans       *int `json:"cluster_kmeans"`
	Hierarchical *int `json:"cluster_hierarchical"`
	GMM          *int `json:"cluster_gmm"`
}

// Cluster returns the label assigned by method m.
func (p Profile) Cluster(m cluster.Method) *int {
	switch m {
	case cluster.MethodKMeans:
		return p.KMeans
	case cluster.MethodHierarchical:
		return p.Hierarchical
	case cluster.MethodGMM:
		return p.GMM
	}

	return nil
}

// Assemble joins features, forecasts and cluster labels on customer ID. The
// output follows the order of vectors; forecasts and clusters may be nil.
func Assemble(vectors []feature.Vector, forecasts []clv.Forecast, clusters *cluster.Result) []Profile {
	byCustomer := make(map[string]*clv.Forecast, len(forecasts))
	for i := range forecasts {
		byCustomer[forecasts[i].CustomerID] = &forecasts[i]
	}

	var position map[string]int
	if clusters != nil {
		position = make(map[string]int, len(clusters.CustomerIDs))
		for i, id := range clusters.CustomerIDs {
			position[id] = i
		}
	}

	profiles := make([]Profile, 0, len(vectors))
	for _, v := range vectors {
		p := Profile{
			CustomerID:     v.CustomerID,
			Recency:        v.Recency,
			Frequency:      v.Frequency,
			Monetary:       v.Monetary,
			Shares:         v.Shares,
			PrimaryCountry: v.PrimaryCountry,
			IsUK:           v.IsUK,
		}

		if f, ok := byCustomer[v.CustomerID]; ok {
			p.CLV6m = new(f.CLV)
			p.ExpectedPurchases = new(f.ExpectedPurchases)
			p.ProbAlive = new(f.ProbAlive)
		}

		if i, ok := position[v.CustomerID]; ok {
			p.KMeans = label(clusters, cluster.MethodKMeans, i)
			p.Hierarchical = label(clusters, cluster.MethodHierarchical, i)
			p.GMM = label(clusters, cluster.MethodGMM, i)
		}

		profiles = append(profiles, p)
	}

	return profiles
}

func label(res *cluster.Result, m cluster.Method, i int) *int {
	labels := res.Labels[m]
	if i >= len(labels) {
		return nil
	}

	return new(labels[i])
}
