package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

type Rating struct {
	User  string
	Item  string
	Value float64
}

type RecommendParams struct {
	TopN        int
	Neighbors   int
	EvalSamples int
	MaxUsers    int
	Seed        int64
}

func (p *RecommendParams) defaults() {
	if p.TopN <= 0 {
		p.TopN = 5
	}
	if p.Neighbors <= 0 {
		p.Neighbors = 20
	}
	if p.EvalSamples <= 0 {
		p.EvalSamples = 200
	}
	if p.MaxUsers <= 0 {
		p.MaxUsers = 100
	}
}

type Recommendation struct {
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

// RecommenderModel is a user based collaborative filter over a sparse rating matrix.
type RecommenderModel struct {
	Ratings   map[string]map[string]float64 `json:"ratings"`
	Neighbors int                           `json:"neighbors"`
}

type RecommendationResult struct {
	Users           int                         `json:"users"`
	Items           int                         `json:"items"`
	Ratings         int                         `json:"ratings"`
	Sparsity        float64                     `json:"sparsity"`
	RMSE            float64                     `json:"rmse"`
	Evaluated       int                         `json:"evaluated"`
	TopN            int                         `json:"topN"`
	Recommendations map[string][]Recommendation `json:"recommendations"`
}

func (r *RecommendationResult) Metrics() map[string]float64 {
	return map[string]float64{"rmse": r.RMSE, "sparsity": r.Sparsity, "users": float64(r.Users), "items": float64(r.Items)}
}

// cosine similarity of two users; skip hides one item of u for leave-one-out scoring
func (m *RecommenderModel) similarity(u, v, skip string) float64 {
	ru, rv := m.Ratings[u], m.Ratings[v]
	var dot, nu, nv float64
	for item, a := range ru {
		if item == skip {
			continue
		}
		nu += a * a
		if b, ok := rv[item]; ok {
			dot += a * b
		}
	}
	for _, b := range rv {
		nv += b * b
	}
	if nu == 0 || nv == 0 {
		return 0
	}
	return dot / (math.Sqrt(nu) * math.Sqrt(nv))
}

type neighbor struct {
	user string
	sim  float64
}

func (m *RecommenderModel) neighbors(u, skip string) []neighbor {
	out := make([]neighbor, 0, len(m.Ratings))
	for v := range m.Ratings {
		if v == u {
			continue
		}
		if s := m.similarity(u, v, skip); s > 0 {
			out = append(out, neighbor{user: v, sim: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].sim == out[j].sim {
			return out[i].user < out[j].user
		}
		return out[i].sim > out[j].sim
	})
	if len(out) > m.Neighbors {
		out = out[:m.Neighbors]
	}
	return out
}

// score is the similarity weighted mean rating of item among the neighbours.
func score(ratings map[string]map[string]float64, ns []neighbor, item string) (float64, bool) {
	var num, den float64
	for _, n := range ns {
		if r, ok := ratings[n.user][item]; ok {
			num += n.sim * r
			den += n.sim
		}
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// Recommend returns up to n unseen items for a user. Unknown users get the best rated items.
func (m *RecommenderModel) Recommend(user string, n int) []Recommendation {
	if n <= 0 {
		n = 5
	}
	seen := m.Ratings[user]
	var out []Recommendation
	if seen == nil {
		out = m.popular()
	} else {
		ns := m.neighbors(user, "")
		candidates := make(map[string]struct{})
		for _, nb := range ns {
			for item := range m.Ratings[nb.user] {
				if _, ok := seen[item]; !ok {
					candidates[item] = struct{}{}
				}
			}
		}
		for item := range candidates {
			if s, ok := score(m.Ratings, ns, item); ok {
				out = append(out, Recommendation{Item: item, Score: s})
			}
		}
		sortRecommendations(out)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (m *RecommenderModel) popular() []Recommendation {
	sum := make(map[string]float64)
	cnt := make(map[string]int)
	for _, items := range m.Ratings {
		for item, r := range items {
			sum[item] += r
			cnt[item]++
		}
	}
	out := make([]Recommendation, 0, len(sum))
	for item, s := range sum {
		out = append(out, Recommendation{Item: item, Score: s / float64(cnt[item])})
	}
	sortRecommendations(out)
	return out
}

func sortRecommendations(r []Recommendation) {
	sort.Slice(r, func(i, j int) bool {
		if r[i].Score == r[j].Score {
			return r[i].Item < r[j].Item
		}
		return r[i].Score > r[j].Score
	})
}

// TrainRecommender builds the rating matrix and scores it with leave-one-out predictions.
func TrainRecommender(ratings []Rating, params RecommendParams) (*RecommenderModel, *RecommendationResult, error) {
	params.defaults()
	matrix := make(map[string]map[string]float64)
	counts := make(map[string]map[string]int)
	items := make(map[string]struct{})
	for _, r := range ratings {
		if r.User == "" || r.Item == "" || math.IsNaN(r.Value) {
			continue
		}
		if matrix[r.User] == nil {
			matrix[r.User] = make(map[string]float64)
			counts[r.User] = make(map[string]int)
		}
		// duplicate pairs are averaged
		c := counts[r.User][r.Item]
		matrix[r.User][r.Item] = (matrix[r.User][r.Item]*float64(c) + r.Value) / float64(c+1)
		counts[r.User][r.Item] = c + 1
		items[r.Item] = struct{}{}
	}
	if len(matrix) < 2 || len(items) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least two users and two items", ErrNotEnoughData)
	}
	model := &RecommenderModel{Ratings: matrix, Neighbors: params.Neighbors}

	type obs struct {
		user, item string
		value      float64
	}
	all := make([]obs, 0, len(ratings))
	users := make([]string, 0, len(matrix))
	for u, its := range matrix {
		users = append(users, u)
		for it, v := range its {
			all = append(all, obs{u, it, v})
		}
	}
	sort.Strings(users)
	sort.Slice(all, func(i, j int) bool {
		if all[i].user == all[j].user {
			return all[i].item < all[j].item
		}
		return all[i].user < all[j].user
	})
	res := &RecommendationResult{
		Users:           len(matrix),
		Items:           len(items),
		Ratings:         len(all),
		Sparsity:        1 - float64(len(all))/(float64(len(matrix))*float64(len(items))),
		TopN:            params.TopN,
		Recommendations: make(map[string][]Recommendation),
	}

	rng := rand.New(rand.NewSource(params.Seed))
	order := rng.Perm(len(all))
	if len(order) > params.EvalSamples {
		order = order[:params.EvalSamples]
	}
	var actual, predicted []float64
	for _, i := range order {
		o := all[i]
		ns := model.neighbors(o.user, o.item)
		p, ok := score(matrix, ns, o.item)
		if !ok {
			continue
		}
		actual = append(actual, o.value)
		predicted = append(predicted, p)
	}
	res.Evaluated = len(actual)
	res.RMSE = RMSE(actual, predicted)

	for i, u := range users {
		if i >= params.MaxUsers {
			break
		}
		res.Recommendations[u] = model.Recommend(u, params.TopN)
	}
	return model, res, nil
}
