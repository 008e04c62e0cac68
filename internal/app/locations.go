package app

import (
	"math/rand"

	"spyroom/internal/domain"
)

// Locations is the built-in catalog: places plus the civilian roles handed
// out there. A round's pool is drawn from the room's selected pool or, when
// empty, from this full catalog.
var Locations = []domain.Location{
	{Name: "Airplane", Roles: []string{"Pilot", "Flight Attendant", "Air Marshal", "Mechanic", "Tourist", "Business Traveler", "Nervous Flyer"}},
	{Name: "Bank", Roles: []string{"Teller", "Manager", "Security Guard", "Robber", "Consultant", "Customer", "Armored Car Driver"}},
	{Name: "Beach", Roles: []string{"Lifeguard", "Surfer", "Ice Cream Vendor", "Photographer", "Kite Surfer", "Beach Bum", "Tourist"}},
	{Name: "Casino", Roles: []string{"Dealer", "Pit Boss", "Bartender", "Card Counter", "Bouncer", "Gambler", "Lounge Singer"}},
	{Name: "Circus", Roles: []string{"Ringmaster", "Acrobat", "Clown", "Animal Trainer", "Juggler", "Ticket Seller", "Visitor"}},
	{Name: "Hospital", Roles: []string{"Surgeon", "Nurse", "Anesthesiologist", "Intern", "Therapist", "Patient", "Paramedic"}},
	{Name: "Movie Studio", Roles: []string{"Director", "Actor", "Stuntman", "Camera Operator", "Costume Designer", "Sound Engineer", "Producer"}},
	{Name: "Passenger Train", Roles: []string{"Conductor", "Engineer", "Dining Car Attendant", "Stoker", "Border Agent", "Passenger", "Stowaway"}},
	{Name: "Pirate Ship", Roles: []string{"Captain", "First Mate", "Cook", "Cannoneer", "Cabin Boy", "Prisoner", "Sailor"}},
	{Name: "Polar Station", Roles: []string{"Expedition Leader", "Meteorologist", "Biologist", "Radio Operator", "Medic", "Geologist", "Cook"}},
	{Name: "Restaurant", Roles: []string{"Head Chef", "Sous Chef", "Waiter", "Sommelier", "Food Critic", "Dishwasher", "Customer"}},
	{Name: "School", Roles: []string{"Principal", "Math Teacher", "Gym Teacher", "Janitor", "Lunch Lady", "Student", "Security Guard"}},
	{Name: "Space Station", Roles: []string{"Commander", "Flight Engineer", "Scientist", "Doctor", "Space Tourist", "Mission Specialist", "Roboticist"}},
	{Name: "Submarine", Roles: []string{"Captain", "Sonar Technician", "Navigator", "Cook", "Electrician", "Torpedo Operator", "Radio Operator"}},
	{Name: "Supermarket", Roles: []string{"Cashier", "Butcher", "Baker", "Stock Clerk", "Shoplifter", "Customer", "Store Manager"}},
	{Name: "Theater", Roles: []string{"Lead Actor", "Understudy", "Stage Manager", "Prompter", "Usher", "Critic", "Audience Member"}},
	{Name: "University", Roles: []string{"Dean", "Professor", "Graduate Student", "Librarian", "Janitor", "Freshman", "Groundskeeper"}},
}

// SamplePool returns a pool of at most max locations. Pools within the cap
// are returned as-is; larger pools are uniformly sampled without
// replacement.
func SamplePool(rng *rand.Rand, pool []domain.Location, max int) []domain.Location {
	if len(pool) <= max {
		return pool
	}

	idx := rng.Perm(len(pool))[:max]
	out := make([]domain.Location, 0, max)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

// playableLocations drops pool entries that cannot host a round: ones with
// no name or no roles to deal. The pool register is peer-written and not
// validated at write time.
func playableLocations(pool []domain.Location) []domain.Location {
	out := make([]domain.Location, 0, len(pool))
	for _, loc := range pool {
		if loc.Name != "" && len(loc.Roles) > 0 {
			out = append(out, loc)
		}
	}
	return out
}
