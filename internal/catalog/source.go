package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Source supplies the listing at startup.
type Source interface {
	Load(ctx context.Context) ([]Item, error)
}

// StaticSource serves a fixed listing compiled into the binary.
type StaticSource struct {
	Items []Item
}

// Load returns a copy of the configured items, or the seed books when none are set.
func (s StaticSource) Load(_ context.Context) ([]Item, error) {
	items := s.Items
	if items == nil {
		items = SeedBooks()
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out, nil
}

// Load reads the listing from src and builds the Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		return nil, errors.New("catalog: source is required")
	}
	items, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(items)
}

// SeedBooks is the default storefront listing. Prices are whole naira.
func SeedBooks() []Item {
	return []Item{
		{
			ID:          "natural-ways-to-health-shiatsu",
			Title:       "Natural Ways to Health: Shiatsu",
			Author:      "Natural Health Series",
			Price:       15000,
			Tag:         "Ethnic health",
			ImageURL:    "https://images.pexels.com/photos/3735761/pexels-photo-3735761.jpeg",
			Description: "Discover the traditional Japanese art of shiatsu for natural healing. This practical guide explains how gentle pressure on specific points can help relieve stress, ease pain, and support your body's natural balance. Step-by-step illustrations make it simple to follow at home.",
		},
		{
			ID:          "complete-illustrated-guide-vitamins-minerals",
			Title:       "The Complete Illustrated Guide to Vitamins & Minerals",
			Author:      "Denise Mortimore",
			Price:       16000,
			Tag:         "Nutrition",
			ImageURL:    "https://images.pexels.com/photos/3683074/pexels-photo-3683074.jpeg",
			Description: "An easy-to-use reference to every major vitamin and mineral. Learn what each nutrient does in the body, where to find it in food, and how to use it safely to support health concerns. Ideal for anyone who wants to understand supplements in a clear, visual way.",
		},
		{
			ID:          "alternative-medicine-norman-shealy",
			Title:       "Alternative Medicine",
			Author:      "Norman Shealy",
			Price:       17000,
			Tag:         "Holistic",
			ImageURL:    "https://images.pexels.com/photos/204649/pexels-photo-204649.jpeg",
			Description: "A comprehensive overview of non-conventional healing methods, from herbal remedies and acupuncture to mind-body therapies. Norman Shealy explains when and how alternative approaches can complement conventional medicine, with a strong focus on safety and evidence.",
		},
		{
			ID:          "illustrated-encyclopedia-essential-oils",
			Title:       "The Illustrated Encyclopedia of Essential Oils",
			Author:      "Essential Oils Reference",
			Price:       18000,
			Tag:         "Aromatherapy",
			ImageURL:    "https://images.pexels.com/photos/932577/pexels-photo-932577.jpeg",
			Description: "A rich visual encyclopedia covering dozens of essential oils and their traditional uses. Includes guidance on blending, safe dilution, and practical recipes for relaxation, beauty care, and natural home remedies, with a strong emphasis on therapeutic quality.",
		},
		{
			ID:          "complete-illustrated-guide-reflexology",
			Title:       "The Complete Illustrated Guide to Reflexology",
			Author:      "Inge Dougans",
			Price:       19000,
			Tag:         "Reflexology",
			ImageURL:    "https://images.pexels.com/photos/161477/massage-therapist-spa-swedish-massage-massage-161477.jpeg",
			Description: "Step-by-step, fully illustrated guide to reflexology, the natural therapy that works on reflex points in the feet and hands. Inge Dougans explains how stimulating these points can help improve circulation, support organs, and promote overall wellbeing.",
		},
	}
}
