package normalize

import (
	"regexp"
	"sort"
)

// DefaultCategory is used when neither the source nor the title gives one.
const DefaultCategory = "Professional Development"

// DefaultRegion is used when the location matches no known city.
const DefaultRegion = "UK"

type categoryRule struct {
	keywords []string
	category string
}

// Order matters: a title is assigned the first rule with a matching keyword,
// so specific qualifications sit above the broad topics they mention.
var categoryRules = []categoryRule{
	{[]string{"18th edition", "bs 7671", "bs7671", "2382"}, "18th Edition"},
	{[]string{"am2"}, "AM2 Assessment"},
	{[]string{"ev charg", "electric vehicle", "2919"}, "EV Charging"},
	{[]string{"solar", "photovoltaic", " pv", "battery storage", "renewable", "heat pump"}, "Renewable Energy"},
	{[]string{"fire alarm", "fire detection", "bs 5839"}, "Fire Alarm Systems"},
	{[]string{"emergency lighting", "bs 5266"}, "Emergency Lighting"},
	{[]string{"pat ", "portable appliance"}, "PAT Testing"},
	{[]string{"inspection", "testing", "2391", "2394", "2395", "eicr"}, "Inspection & Testing"},
	{[]string{"design", "verification"}, "Design & Verification"},
	{[]string{"nvq", "level 2", "level 3", "apprentice", "2365", "5357"}, "Qualifications & NVQ"},
	{[]string{"domestic installer", "part p", "electrical installation"}, "Domestic Installation"},
	{[]string{"data cabling", "fibre", "structured cabling"}, "Data & Communications"},
	{[]string{"asbestos", "first aid", "cscs", "health and safety", "ipaf", "pasma", "smsts", "sssts"}, "Health & Safety"},
}

type regionRule struct {
	places []string
	region string
}

var regionRules = []regionRule{
	{[]string{"online", "virtual", "remote", "e-learning"}, "Online"},
	{[]string{"london", "croydon", "romford", "enfield", "dartford"}, "London"},
	{[]string{"brighton", "reading", "southampton", "portsmouth", "kent", "maidstone", "guildford", "oxford", "milton keynes", "winchester", "south east"}, "South East"},
	{[]string{"bristol", "exeter", "plymouth", "swindon", "bath", "gloucester", "cornwall", "dorchester", "south west"}, "South West"},
	{[]string{"birmingham", "coventry", "wolverhampton", "leicester", "nottingham", "derby", "stoke", "walsall", "solihull", "newcastle-under-lyme", "midlands"}, "Midlands"},
	{[]string{"norwich", "cambridge", "ipswich", "peterborough", "chelmsford", "colchester", "east anglia"}, "East of England"},
	{[]string{"manchester", "liverpool", "preston", "bolton", "warrington", "wigan", "chester", "blackburn", "north west"}, "North West"},
	{[]string{"leeds", "sheffield", "bradford", "yorkshire", "york", "hull", "doncaster", "wakefield", "huddersfield"}, "Yorkshire"},
	{[]string{"newcastle", "sunderland", "middlesbrough", "durham", "gateshead", "north east"}, "North East"},
	{[]string{"glasgow", "edinburgh", "aberdeen", "dundee", "inverness", "stirling", "bathgate", "scotland"}, "Scotland"},
	{[]string{"cardiff", "swansea", "newport", "wrexham", "wales"}, "Wales"},
	{[]string{"belfast", "londonderry", "derry", "northern ireland"}, "Northern Ireland"},
}

type placeMatcher struct {
	re     *regexp.Regexp
	region string
}

// placeMatchers holds every place as a whole-word pattern, longest first so
// that of two names starting at the same offset the longer one is found
// first. Equal lengths keep rule order.
var placeMatchers = buildPlaceMatchers(regionRules)

func buildPlaceMatchers(rules []regionRule) []placeMatcher {
	type place struct {
		name   string
		region string
	}
	var places []place
	for _, r := range rules {
		for _, p := range r.places {
			places = append(places, place{p, r.region})
		}
	}
	sort.SliceStable(places, func(i, j int) bool {
		return len(places[i].name) > len(places[j].name)
	})

	out := make([]placeMatcher, 0, len(places))
	for _, p := range places {
		out = append(out, placeMatcher{
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(p.name) + `\b`),
			region: p.region,
		})
	}
	return out
}
