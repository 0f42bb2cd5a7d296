package catalog

import (
	"strings"

	"github.com/hitoshi/autowheel/internal/model"
)

// DefaultPlaceholderImage はメーカーが未登録の場合に使う画像。
const DefaultPlaceholderImage = "https://images.unsplash.com/photo-1605559424843-9e4c228bf1c2?w=800&h=600&fit=crop&crop=center"

type placeholderEntry struct {
	key string
	url string
}

// placeholderImages はメーカー・モデルごとの代替画像。モデルの照合は定義順に行う。
var placeholderImages = map[string][]placeholderEntry{
	"toyota": {
		{"camry", "https://images.unsplash.com/photo-1621007947382-bb3c3994e3fb?w=800&h=600&fit=crop&crop=center"},
		{"corolla", "https://images.unsplash.com/photo-1623869675781-80aa31012a5a?w=800&h=600&fit=crop&crop=center"},
		{"rav4", "https://images.unsplash.com/photo-1605559424843-9e4c228bf1c2?w=800&h=600&fit=crop&crop=center"},
	},
	"bmw": {
		{"x5", "https://images.unsplash.com/photo-1555215695-3004980ad54e?w=800&h=600&fit=crop&crop=center"},
		{"x3", "https://images.unsplash.com/photo-1617886903355-9354bb57751f?w=800&h=600&fit=crop&crop=center"},
		{"series3", "https://images.unsplash.com/photo-1617788138017-80ad40651399?w=800&h=600&fit=crop&crop=center"},
	},
	"tesla": {
		{"model3", "https://images.unsplash.com/photo-1560958089-b8a1929cea89?w=800&h=600&fit=crop&crop=center"},
		{"models", "https://images.unsplash.com/photo-1617704548623-340376564e68?w=800&h=600&fit=crop&crop=center"},
		{"modely", "https://images.unsplash.com/photo-1571068316344-75bc76f77890?w=800&h=600&fit=crop&crop=center"},
	},
	"mercedes": {
		{"cclass", "https://images.unsplash.com/photo-1618843479313-40f8afb4b4d8?w=800&h=600&fit=crop&crop=center"},
		{"eclass", "https://images.unsplash.com/photo-1606664515524-ed2f786a0bd6?w=800&h=600&fit=crop&crop=center"},
		{"gle", "https://images.unsplash.com/photo-1606016872687-22c04450ac84?w=800&h=600&fit=crop&crop=center"},
	},
	"audi": {
		{"a4", "https://images.unsplash.com/photo-1614200179396-2bdb77ebf81b?w=800&h=600&fit=crop&crop=center"},
		{"q5", "https://images.unsplash.com/photo-1606220588913-b3aacb4d2f46?w=800&h=600&fit=crop&crop=center"},
		{"a6", "https://images.unsplash.com/photo-1616422285623-13ff0162193c?w=800&h=600&fit=crop&crop=center"},
	},
	"volkswagen": {
		{"golf", "https://images.unsplash.com/photo-1612825173281-9a193378527e?w=800&h=600&fit=crop&crop=center"},
		{"passat", "https://images.unsplash.com/photo-1613294434563-aac4ac7b2330?w=800&h=600&fit=crop&crop=center"},
		{"tiguan", "https://images.unsplash.com/photo-1606664515524-ed2f786a0bd6?w=800&h=600&fit=crop&crop=center"},
	},
}

// PlaceholderImage はメーカーとモデルから決定的に代替画像を選ぶ。
// モデル名は空白を除いて小文字化し、キーとの双方向の部分一致で照合する。
// 一致するモデルがなければそのメーカーの先頭の画像、メーカーが未登録なら既定の画像を返す。
func PlaceholderImage(vehicleMake, modelName string) string {
	entries, ok := placeholderImages[strings.ToLower(vehicleMake)]
	if !ok {
		return DefaultPlaceholderImage
	}

	m := strings.ToLower(strings.Join(strings.Fields(modelName), ""))
	for _, e := range entries {
		if strings.Contains(m, e.key) || strings.Contains(e.key, m) {
			return e.url
		}
	}
	return entries[0].url
}

// PrimaryImage は車両の代表画像を返す。画像が未登録なら代替画像を返す。
func PrimaryImage(l *model.Listing) string {
	for _, img := range l.Images {
		if strings.TrimSpace(img) != "" {
			return img
		}
	}
	return PlaceholderImage(l.Make, l.Model)
}
