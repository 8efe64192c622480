package registry

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Built-in generator data. Lists are fixed so that a seeded run is
// reproducible across releases; extend by appending, never by reordering.

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen", "Daniel",
	"Lisa", "Matthew", "Nancy", "Anthony", "Betty", "Mark", "Margaret",
	"Donald", "Sandra", "Steven", "Ashley", "Paul", "Kimberly", "Andrew",
	"Emily", "Joshua", "Donna", "Kenneth", "Michelle",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	"Ramirez", "Lewis", "Robinson", "Walker", "Young", "Allen", "King",
	"Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
}

var cities = []string{
	"Springfield", "Riverton", "Fairview", "Kingston", "Greenville",
	"Bristol", "Clinton", "Madison", "Georgetown", "Salem", "Ashland",
	"Oxford", "Arlington", "Burlington", "Clayton", "Dayton", "Lexington",
	"Milford", "Newport", "Winchester",
}

var countries = []string{
	"United States", "Canada", "Mexico", "Brazil", "United Kingdom",
	"France", "Germany", "Spain", "Italy", "Netherlands", "Sweden",
	"Norway", "Poland", "Japan", "South Korea", "Australia", "India",
	"South Africa", "Argentina", "Chile",
}

var streetSuffixes = []string{
	"Street", "Avenue", "Lane", "Road", "Boulevard", "Drive", "Court",
	"Place", "Terrace", "Way",
}

var streetNames = []string{
	"Oak", "Maple", "Cedar", "Pine", "Elm", "Washington", "Lake", "Hill",
	"Park", "Main", "Church", "High", "Mill", "Walnut", "Spring", "Sunset",
	"Ridge", "Meadow", "Forest", "River",
}

var emailDomains = []string{
	"example.com", "example.org", "example.net", "mail.test", "inbox.test",
}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
	"quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi",
	"aliquip", "ex", "ea", "commodo", "consequat",
}

func pick(rng *rand.Rand, list []string) string {
	return list[rng.Intn(len(list))]
}

func (r *Registry) installBuiltins() {
	titler := cases.Title(r.locale)

	r.Register("person.first_name", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, firstNames), nil
	})
	r.Register("person.last_name", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, lastNames), nil
	})
	r.Register("person.full_name", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, firstNames) + " " + pick(rng, lastNames), nil
	})

	r.Register("internet.user_name", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return fmt.Sprintf("%s.%s%d",
			strings.ToLower(pick(rng, firstNames)),
			strings.ToLower(pick(rng, lastNames)),
			rng.Intn(100)), nil
	})
	r.Register("internet.email", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return fmt.Sprintf("%s.%s@%s",
			strings.ToLower(pick(rng, firstNames)),
			strings.ToLower(pick(rng, lastNames)),
			pick(rng, emailDomains)), nil
	})
	r.Register("internet.domain_name", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, emailDomains), nil
	})

	r.Register("address.city", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, cities), nil
	})
	r.Register("address.country", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, countries), nil
	})
	r.Register("address.street_address", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return fmt.Sprintf("%d %s %s",
			1+rng.Intn(9999), pick(rng, streetNames), pick(rng, streetSuffixes)), nil
	})
	r.Register("address.postcode", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return fmt.Sprintf("%05d", rng.Intn(100000)), nil
	})

	r.Register("lorem.word", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return pick(rng, loremWords), nil
	})
	r.Register("lorem.sentence", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		n := int64(6)
		if len(args) > 0 {
			var err error
			if n, err = argInt(args, 0, "word count"); err != nil {
				return nil, err
			}
			if n < 1 {
				return nil, fmt.Errorf("word count must be positive, got %d", n)
			}
		}
		words := make([]string, n)
		for i := range words {
			words[i] = pick(rng, loremWords)
		}
		words[0] = titler.String(words[0])
		return strings.Join(words, " ") + ".", nil
	})

	r.Register("number.int", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		lo, err := argInt(args, 0, "min")
		if err != nil {
			return nil, err
		}
		hi, err := argInt(args, 1, "max")
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("max %d is below min %d", hi, lo)
		}
		return lo + rng.Int63n(hi-lo+1), nil
	})
	r.Register("number.float", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		lo, err := argFloat(args, 0, "min")
		if err != nil {
			return nil, err
		}
		hi, err := argFloat(args, 1, "max")
		if err != nil {
			return nil, err
		}
		if hi < lo {
			return nil, fmt.Errorf("max %v is below min %v", hi, lo)
		}
		return lo + rng.Float64()*(hi-lo), nil
	})
	r.Register("number.digit", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return int64(rng.Intn(10)), nil
	})

	r.Register("boolean.boolean", func(rng *rand.Rand, _ []any, kwargs map[string]any) (any, error) {
		p, err := kwFloat(kwargs, "truth_probability", 50)
		if err != nil {
			return nil, err
		}
		if p < 0 || p > 100 {
			return nil, fmt.Errorf("truth_probability must be in [0, 100], got %v", p)
		}
		return rng.Float64()*100 < p, nil
	})

	r.Register("datetime.now", func(_ *rand.Rand, _ []any, _ map[string]any) (any, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	})
	r.Register("datetime.year", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		lo, hi := int64(1970), int64(time.Now().UTC().Year())
		if len(args) > 0 {
			var err error
			if lo, err = argInt(args, 0, "min"); err != nil {
				return nil, err
			}
			if hi, err = argInt(args, 1, "max"); err != nil {
				return nil, err
			}
		}
		if hi < lo {
			return nil, fmt.Errorf("max %d is below min %d", hi, lo)
		}
		return lo + rng.Int63n(hi-lo+1), nil
	})
	r.Register("datetime.date_between", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		from, err := argString(args, 0, "start date")
		if err != nil {
			return nil, err
		}
		to, err := argString(args, 1, "end date")
		if err != nil {
			return nil, err
		}
		lo, err := time.Parse("2006-01-02", from)
		if err != nil {
			return nil, fmt.Errorf("start date: %w", err)
		}
		hi, err := time.Parse("2006-01-02", to)
		if err != nil {
			return nil, fmt.Errorf("end date: %w", err)
		}
		if hi.Before(lo) {
			return nil, fmt.Errorf("end date %s is before start date %s", to, from)
		}
		days := int64(hi.Sub(lo).Hours()/24) + 1
		return lo.AddDate(0, 0, int(rng.Int63n(days))).Format("2006-01-02"), nil
	})
	r.Register("datetime.unix_time", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		now := time.Now().UTC().Unix()
		return rng.Int63n(now), nil
	})

	r.Register("uuid", func(rng *rand.Rand, _ []any, _ map[string]any) (any, error) {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	})

	r.Register("choice", func(rng *rand.Rand, args []any, _ map[string]any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("choice takes exactly one list argument")
		}
		list, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("choice argument must be a list, got %T", args[0])
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("choice list is empty")
		}
		return list[rng.Intn(len(list))], nil
	})
}
