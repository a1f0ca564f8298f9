package normalize

import "github.com/carscout-ai/carscout/internal/domain"

// fuelAliases maps folded Bulgarian and English variants to the
// canonical Fuel enum (§4.3 "mapping table including Bulgarian/English
// variants").
var fuelAliases = map[string]domain.Fuel{
	"petrol":   domain.FuelPetrol,
	"gasoline": domain.FuelPetrol,
	"benzin":   domain.FuelPetrol,
	"бензин":   domain.FuelPetrol,
	"diesel":   domain.FuelDiesel,
	"дизел":    domain.FuelDiesel,
	"hybrid":   domain.FuelHybrid,
	"хибрид":   domain.FuelHybrid,
	"electric": domain.FuelElectric,
	"ev":       domain.FuelElectric,
	"електрически": domain.FuelElectric,
	"lpg":      domain.FuelLPG,
	"газ":      domain.FuelLPG,
	"cng":      domain.FuelCNG,
	"метан":    domain.FuelCNG,
}

var gearboxAliases = map[string]domain.Gearbox{
	"manual":       domain.GearboxManual,
	"ръчна":        domain.GearboxManual,
	"ръчни":        domain.GearboxManual,
	"automatic":    domain.GearboxAutomatic,
	"automat":      domain.GearboxAutomatic,
	"автоматик":    domain.GearboxAutomatic,
	"автоматична":  domain.GearboxAutomatic,
	"semi-auto":    domain.GearboxSemiAuto,
	"semi_auto":    domain.GearboxSemiAuto,
	"полуавтоматик": domain.GearboxSemiAuto,
}

var bodyAliases = map[string]domain.Body{
	"sedan":      domain.BodySedan,
	"седан":      domain.BodySedan,
	"hatchback":  domain.BodyHatchback,
	"хечбек":     domain.BodyHatchback,
	"estate":     domain.BodyEstate,
	"combi":      domain.BodyEstate,
	"комби":      domain.BodyEstate,
	"suv":        domain.BodySUV,
	"джип":       domain.BodySUV,
	"coupe":      domain.BodyCoupe,
	"купе":       domain.BodyCoupe,
	"convertible": domain.BodyConvertible,
	"кабрио":      domain.BodyConvertible,
	"van":        domain.BodyVan,
	"ван":        domain.BodyVan,
	"pickup":     domain.BodyPickup,
	"пикап":      domain.BodyPickup,
}

// MatchFuel resolves free text to a Fuel enum, defaulting to FuelOther
// for anything unrecognized rather than rejecting the listing (§4.3).
func MatchFuel(raw string) domain.Fuel {
	if f, ok := fuelAliases[Fold(raw)]; ok {
		return f
	}
	return domain.FuelOther
}

func MatchGearbox(raw string) domain.Gearbox {
	if g, ok := gearboxAliases[Fold(raw)]; ok {
		return g
	}
	return domain.GearboxOther
}

func MatchBody(raw string) domain.Body {
	if b, ok := bodyAliases[Fold(raw)]; ok {
		return b
	}
	return domain.BodyOther
}

// knownRegions is the closed set §4.3 canonicalizes region to: the 28
// Bulgarian provinces (oblasti), keyed by folded name.
var knownRegions = map[string]string{
	"sofia": "sofia", "софия": "sofia", "софия-град": "sofia",
	"plovdiv": "plovdiv", "пловдив": "plovdiv",
	"varna": "varna", "варна": "varna",
	"burgas": "burgas", "бургас": "burgas",
	"ruse": "ruse", "русе": "ruse",
	"stara zagora": "stara_zagora", "стара загора": "stara_zagora",
	"pleven": "pleven", "плевен": "pleven",
	"sliven": "sliven", "сливен": "sliven",
	"dobrich": "dobrich", "добрич": "dobrich",
	"shumen": "shumen", "шумен": "shumen",
	"pernik": "pernik", "перник": "pernik",
	"haskovo": "haskovo", "хасково": "haskovo",
	"yambol": "yambol", "ямбол": "yambol",
	"pazardzhik": "pazardzhik", "пазарджик": "pazardzhik",
	"blagoevgrad": "blagoevgrad", "благоевград": "blagoevgrad",
	"veliko tarnovo": "veliko_tarnovo", "велико търново": "veliko_tarnovo",
	"vratsa": "vratsa", "враца": "vratsa",
	"gabrovo": "gabrovo", "габрово": "gabrovo",
	"montana": "montana", "монтана": "montana",
	"vidin": "vidin", "видин": "vidin",
	"kyustendil": "kyustendil", "кюстендил": "kyustendil",
	"lovech": "lovech", "ловеч": "lovech",
	"razgrad": "razgrad", "разград": "razgrad",
	"silistra": "silistra", "силистра": "silistra",
	"targovishte": "targovishte", "търговище": "targovishte",
	"kardzhali": "kardzhali", "кърджали": "kardzhali",
	"smolyan": "smolyan", "смолян": "smolyan",
	"sofia oblast": "sofia_oblast", "софийска област": "sofia_oblast",
}

// MatchRegion canonicalizes free-form region text, or returns
// ("", false) if it falls outside the closed set (§4.3).
func MatchRegion(raw string) (string, bool) {
	r, ok := knownRegions[Fold(raw)]
	return r, ok
}
