package sheet

import "mbsheets/internal/model"

// Template returns the header row Decode expects for the given number of
// projection and rule groups.
func Template(selects, filters int) (model.Grid, error) {
	if selects < 1 {
		return nil, model.ErrMalformed(-1, "at least one select group is required, got %d", selects)
	}
	if filters < 0 {
		return nil, model.ErrMalformed(-1, "filter group count must not be negative, got %d", filters)
	}

	header := make([]interface{}, 0, 1+selects*len(projectionColumns)+filters*len(ruleColumns))
	header = append(header, ColEventName)
	for i := 0; i < selects; i++ {
		for _, name := range projectionColumns {
			header = append(header, name)
		}
	}
	for i := 0; i < filters; i++ {
		for _, name := range ruleColumns {
			header = append(header, name)
		}
	}
	return model.Grid{header}, nil
}
