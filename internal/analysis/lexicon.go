package analysis

// Default lexicons for the Turkish/English review corpus the pipeline
// ingests. Weights are tuning data, not fixed constants: callers can
// replace any table through Config, and the defaults here are validated
// against the test corpus rather than carried over from elsewhere.

func defaultPositiveLexicon() map[string]float64 {
	return map[string]float64{
		// Turkish
		"harika":    0.9,
		"mükemmel":  0.95,
		"kaliteli":  0.8,
		"kalite":    0.7,
		"güzel":     0.7,
		"iyi":       0.6,
		"beğendim":  0.75,
		"bayıldım":  0.9,
		"tavsiye":   0.7,
		"hızlı":     0.6,
		"uygun":     0.5,
		"memnun":    0.7,
		"rahat":     0.65,
		"şık":       0.6,
		"sağlam":    0.75,
		"birebir":   0.6,
		"süper":     0.85,
		"başarılı":  0.7,
		"yumuşak":   0.55,
		"şahane":    0.85,
		// English
		"excellent":   0.9,
		"great":       0.8,
		"good":        0.6,
		"perfect":     0.95,
		"love":        0.8,
		"quality":     0.7,
		"comfortable": 0.65,
		"recommend":   0.7,
		"durable":     0.75,
		"soft":        0.55,
		"fast":        0.6,
		"nice":        0.6,
	}
}

func defaultNegativeLexicon() map[string]float64 {
	return map[string]float64{
		// Turkish
		"berbat":    0.95,
		"kötü":      0.8,
		"rezalet":   0.9,
		"defolu":    0.85,
		"yırtık":    0.8,
		"bozuk":     0.85,
		"kalitesiz": 0.85,
		"iade":      0.6,
		"geç":       0.5,
		"pahalı":    0.6,
		"sökük":     0.8,
		"soluk":     0.55,
		"dar":       0.5,
		"küçük":     0.45,
		"pişman":    0.8,
		"çirkin":    0.75,
		"incecik":   0.6,
		// English
		"awful":        0.9,
		"terrible":     0.9,
		"bad":          0.7,
		"poor":         0.7,
		"broken":       0.85,
		"flimsy":       0.7,
		"disappointed": 0.8,
		"refund":       0.6,
		"late":         0.5,
		"tiny":         0.45,
	}
}

// Diagnostic bigrams checked by substring containment, independent of
// tokenization.
func defaultDiagnosticBigrams() []string {
	return []string{
		"hayal kırıklığı",
		"tavsiye ederim",
		"tavsiye etmem",
		"fiyat performans",
		"geç geldi",
		"beden uyumlu",
		"kesinlikle alın",
		"waste of money",
		"highly recommend",
	}
}

func defaultPurchaseReasons() map[string][]string {
	return map[string][]string{
		"price": {
			"fiyat", "ucuz", "indirim", "uygun fiyat", "kampanya", "fırsat",
			"price", "cheap", "discount", "deal", "bargain",
		},
		"quality": {
			"kalite", "kumaş", "sağlam", "dayanıklı", "malzeme", "dikiş",
			"quality", "durable", "fabric", "material", "sturdy",
		},
		"social_proof": {
			"yorum", "tavsiye", "öneri", "arkadaş", "herkes",
			"review", "recommend", "friend", "everyone",
		},
		"brand_trust": {
			"marka", "orijinal", "güven", "bilinen",
			"brand", "original", "authentic", "trust",
		},
		"need": {
			"ihtiyaç", "lazım", "gerek", "zorunlu",
			"need", "necessary",
		},
		"appearance": {
			"görünüm", "şık", "renk", "tarz", "model", "desen",
			"style", "color", "look", "design",
		},
	}
}

func defaultBehaviorPatterns() map[string][]string {
	return map[string][]string{
		"impulsive": {
			"hemen", "anında", "görür görmez", "dayanamadım", "direkt",
			"immediately", "instantly",
		},
		"researcher": {
			"araştırdım", "karşılaştırdım", "yorumları okudum", "inceledim",
			"researched", "compared",
		},
		"bargain_hunter": {
			"indirim", "kupon", "fırsat", "ucuza", "kampanya",
			"discount", "coupon", "sale",
		},
		"loyal": {
			"tekrar", "yine", "ikinci kez", "hep bu", "sürekli",
			"again", "always",
		},
		"cautious": {
			"tereddüt", "çekindim", "emin olamadım", "risk",
			"hesitant", "unsure",
		},
	}
}
