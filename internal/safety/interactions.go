// Package safety checks new medication orders against a patient's open
// medications for known drug-drug interactions. Matching is keyword-based on
// the order title; the table is a fixed clinical reference, not a config.
package safety

import (
	"fmt"
	"strings"
)

// interactionTable maps a drug keyword to the keywords it conflicts with.
// Lookup is directional on the new order's keywords.
var interactionTable = map[string][]string{
	"amoxicillin":         {"warfarin", "methotrexate"},
	"warfarin":            {"amoxicillin", "aspirin", "ibuprofen", "naproxen"},
	"aspirin":             {"warfarin", "ibuprofen", "naproxen", "heparin"},
	"ibuprofen":           {"warfarin", "aspirin", "lithium", "naproxen", "methotrexate"},
	"naproxen":            {"warfarin", "aspirin", "ibuprofen", "lithium"},
	"metformin":           {"contrast"},
	"lithium":             {"ibuprofen", "naproxen", "furosemide", "hydrochlorothiazide"},
	"methotrexate":        {"amoxicillin", "ibuprofen", "trimethoprim"},
	"trimethoprim":        {"methotrexate"},
	"digoxin":             {"amiodarone", "verapamil", "furosemide"},
	"amiodarone":          {"digoxin", "warfarin", "simvastatin"},
	"simvastatin":         {"amiodarone", "erythromycin", "clarithromycin"},
	"erythromycin":        {"simvastatin", "theophylline"},
	"clarithromycin":      {"simvastatin"},
	"theophylline":        {"erythromycin", "ciprofloxacin"},
	"ciprofloxacin":       {"theophylline", "warfarin"},
	"furosemide":          {"lithium", "digoxin", "gentamicin"},
	"gentamicin":          {"furosemide"},
	"heparin":             {"aspirin"},
	"verapamil":           {"digoxin"},
	"hydrochlorothiazide": {"lithium"},
}

// Warning describes one interaction between the new order and an existing
// open medication.
type Warning struct {
	NewDrug       string `json:"new_drug"`
	ExistingDrug  string `json:"existing_drug"`
	ExistingTitle string `json:"existing_title"`
	Message       string `json:"message"`
}

// extractKeywords lowercases the words of an order title that could be drug
// names, stripping trailing punctuation. Dose tokens like "2mg" pass through
// harmlessly since they never appear in the table.
func extractKeywords(title string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range strings.Fields(title) {
		word = strings.ToLower(strings.TrimRight(word, ".,;:"))
		if len(word) > 2 {
			keywords[word] = struct{}{}
		}
	}
	return keywords
}

// CheckInteractions compares a new medication title against the titles of the
// patient's existing open medications and returns one warning per distinct
// interacting drug pair.
func CheckInteractions(newTitle string, existingTitles []string) []Warning {
	newKeywords := extractKeywords(newTitle)
	seen := make(map[[2]string]struct{})
	var warnings []Warning

	for _, existingTitle := range existingTitles {
		existingKeywords := extractKeywords(existingTitle)
		for nk := range newKeywords {
			for _, conflict := range interactionTable[nk] {
				if _, ok := existingKeywords[conflict]; !ok {
					continue
				}
				pair := [2]string{nk, conflict}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				warnings = append(warnings, Warning{
					NewDrug:       nk,
					ExistingDrug:  conflict,
					ExistingTitle: existingTitle,
					Message:       fmt.Sprintf("Potential interaction: %s may interact with %s (in %q)", nk, conflict, existingTitle),
				})
			}
		}
	}
	return warnings
}
