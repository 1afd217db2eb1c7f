package utils

import "strings"

// digitFolder converts Persian and Arabic numerals to ASCII digits.
var digitFolder = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4", "۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4", "٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
)

// letterFolder maps Arabic letter variants to their Persian forms and drops
// the zero-width non-joiner and tatweel used to dodge word filters.
var letterFolder = strings.NewReplacer(
	"ي", "ی", // Arabic Yeh to Farsi Yeh
	"ى", "ی", // Alef Maksura
	"ك", "ک", // Arabic Kaf to Farsi Kaf
	"ة", "ه", // Teh Marbuta to Heh
	"‌", "",
	"ـ", "",
)

// NormalizeDigits converts Persian and Arabic numerals to ASCII digits.
func NormalizeDigits(input string) string {
	return digitFolder.Replace(input)
}

// NormalizeText lowercases input and folds script variants so that the same
// word written on different keyboards compares equal.
func NormalizeText(input string) string {
	return strings.ToLower(strings.TrimSpace(letterFolder.Replace(digitFolder.Replace(input))))
}
