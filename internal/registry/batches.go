package registry

import "course-harvest/internal/domain"

var defaultBatches = []domain.SourceBatch{
	{
		Number: 1,
		Name:   "London & South East",
		Providers: []domain.ProviderDescriptor{
			{Name: "Elec Training", Slug: "elec-training", URL: "https://www.elec-training.com/courses", Priority: 1},
			{Name: "Able Skills", Slug: "able-skills", URL: "https://www.ableskills.co.uk/courses", Priority: 2},
			{Name: "Trade Skills 4U", Slug: "trade-skills-4u", URL: "https://www.tradeskills4u.co.uk/electrical-courses", Priority: 3},
		},
	},
	{
		Number: 2,
		Name:   "Midlands",
		Providers: []domain.ProviderDescriptor{
			{Name: "Electrical Training Midlands", Slug: "etm", URL: "https://www.electricaltrainingmidlands.co.uk/courses", Priority: 1},
			{Name: "NAPIT Training", Slug: "napit", URL: "https://www.napit.org.uk/training", Priority: 2},
		},
	},
	{
		Number: 3,
		Name:   "North West",
		Providers: []domain.ProviderDescriptor{
			{Name: "JTL Training", Slug: "jtl", URL: "https://www.jtltraining.com/courses", Priority: 1},
			{Name: "Logic4training", Slug: "logic4training", URL: "https://www.logic4training.co.uk/electrical", Priority: 2},
			{Name: "Electrical Courses Manchester", Slug: "ecm", URL: "https://www.electricalcoursesmanchester.co.uk", Priority: 3},
		},
	},
	{
		Number: 4,
		Name:   "Yorkshire & North East",
		Providers: []domain.ProviderDescriptor{
			{Name: "Leeds College of Building", Slug: "lcb", URL: "https://www.lcb.ac.uk/courses/electrical", Priority: 1},
			{Name: "NICEIC Training", Slug: "niceic", URL: "https://www.niceic.com/training", Priority: 2},
		},
	},
	{
		Number: 5,
		Name:   "Scotland",
		Providers: []domain.ProviderDescriptor{
			{Name: "SELECT Training", Slug: "select", URL: "https://www.select.org.uk/training", Priority: 1},
			{Name: "Glasgow Clyde College", Slug: "glasgow-clyde", URL: "https://www.glasgowclyde.ac.uk/courses/electrical", Priority: 2},
		},
	},
	{
		Number: 6,
		Name:   "Wales & South West",
		Providers: []domain.ProviderDescriptor{
			{Name: "ACT Training", Slug: "act", URL: "https://www.acttraining.org.uk/electrical", Priority: 1},
			{Name: "Bristol Electrical Academy", Slug: "bristol-electrical", URL: "https://www.bristolelectricalacademy.co.uk/courses", Priority: 2},
		},
	},
}
